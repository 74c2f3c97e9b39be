package main

import (
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// demoScene is the scene shown at startup: a ground plane with one sphere of each material.
func demoScene() scene.Scene {
	metal := scene.Material{Type: scene.MaterialMetal, Albedo: mgl32.Vec3{0.8, 0.6, 0.2}, Roughness: 0.1, IOR: 1}
	glass := scene.Material{Type: scene.MaterialDielectric, Albedo: mgl32.Vec3{1, 1, 1}, IOR: 1.5}
	lamp := scene.Diffuse(mgl32.Vec3{1, 1, 1})
	lamp.Emission = mgl32.Vec3{4, 3.6, 3}

	return scene.NewScene(scene.WithObjects(
		scene.NewPlane(mgl32.Vec3{0, 1, 0}, 0, scene.Diffuse(mgl32.Vec3{0.5, 0.5, 0.5})),
		scene.NewBox(mgl32.Vec3{-3.5, 0, -2.5}, mgl32.Vec3{-2.5, 1, -1.5}, scene.Diffuse(mgl32.Vec3{0.2, 0.3, 0.8})),
		scene.NewSphere(mgl32.Vec3{-1.2, 0.5, 0}, 0.5, scene.Diffuse(mgl32.Vec3{0.8, 0.2, 0.2})),
		scene.NewSphere(mgl32.Vec3{0, 0.5, 0}, 0.5, glass),
		scene.NewSphere(mgl32.Vec3{1.2, 0.5, 0}, 0.5, metal),
		scene.NewSphere(mgl32.Vec3{0, 3, -2}, 0.4, lamp),
	))
}
