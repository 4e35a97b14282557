package version

var (
	// GitVersion is the git tag of the build, set by the linker.
	GitVersion = "unknown"
	// GitCommit is the git commit hash of the build, set by the linker.
	GitCommit = "unknown"
)
