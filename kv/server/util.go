package server

import (
	"fmt"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// LogInfo logs the version information of the server.
func LogInfo() {
	log.Info("Welcome to tinycalvin")
	log.Info("tinycalvin", zap.String("release-version", ReleaseVersion))
	log.Info("tinycalvin", zap.String("git-hash", GitHash))
}

// PrintInfo prints the version information without log info.
func PrintInfo() {
	fmt.Println("Release Version:", ReleaseVersion)
	fmt.Println("Git Commit Hash:", GitHash)
}
