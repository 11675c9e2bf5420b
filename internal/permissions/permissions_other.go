//go:build !darwin

package permissions

// Other platforms have no per-application audio or input permissions.

func microphoneStatus() Status { return Authorized }

func accessibilityStatus() Status { return Authorized }
