//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

// Test runs every package test with the race detector.
func Test() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."), withEnv("CGO_ENABLED", "1"), withStream())
	return err
}

// Vet runs go vet over the module.
func Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

// Check validates shaders, vets and tests.
func Check() {
	mg.SerialDeps(Build.Shaders, Vet, Test)
}
