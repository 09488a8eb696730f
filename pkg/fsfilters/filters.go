// Package fsfilters decides which mounted filesystems count as storage in
// the host widget.
package fsfilters

import (
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

var readOnlyFilesystemPatterns = []struct {
	reason     string
	substrings []string
}{
	{reason: "erofs", substrings: []string{"erofs"}},
	{reason: "squashfs", substrings: []string{"squashfs", "squash-fs"}},
	{reason: "iso9660", substrings: []string{"iso9660"}},
	{reason: "udf", substrings: []string{"udf"}},
	{reason: "cramfs", substrings: []string{"cramfs"}},
}

// ReadOnlyFilesystemReason reports whether fsType is an immutable image that
// always looks full, such as a snap or appliance root. Overlays count only
// when saturated.
func ReadOnlyFilesystemReason(fsType string, totalBytes, usedBytes uint64) (string, bool) {
	ft := strings.ToLower(strings.TrimSpace(fsType))
	if ft == "" {
		return "", false
	}

	for _, pattern := range readOnlyFilesystemPatterns {
		for _, needle := range pattern.substrings {
			if strings.Contains(ft, needle) {
				return pattern.reason, true
			}
		}
	}

	if strings.Contains(ft, "overlay") && totalBytes > 0 && usedBytes >= totalBytes {
		return "overlay", true
	}
	return "", false
}

// ShouldIgnoreReadOnlyFilesystem reports whether usage figures for the
// filesystem are meaningless.
func ShouldIgnoreReadOnlyFilesystem(fsType string, totalBytes, usedBytes uint64) bool {
	_, skip := ReadOnlyFilesystemReason(fsType, totalBytes, usedBytes)
	return skip
}

// virtualFSTypes never hold user data.
var virtualFSTypes = map[string]bool{
	"tmpfs":      true,
	"devtmpfs":   true,
	"cgroup":     true,
	"cgroup2":    true,
	"sysfs":      true,
	"proc":       true,
	"devpts":     true,
	"securityfs": true,
	"debugfs":    true,
	"tracefs":    true,
	"configfs":   true,
	"pstore":     true,
	"hugetlbfs":  true,
	"mqueue":     true,
	"bpf":        true,
	"nsfs":       true,
	"overlay":    true,
	"autofs":     true,
	"devfs":      true,
}

// networkFSPatterns mark remote mounts, which belong to another host's widget.
var networkFSPatterns = []string{"fuse", "9p", "nfs", "cifs", "smb"}

var specialMountPrefixes = []string{
	"/dev",
	"/proc",
	"/sys",
	"/run",
	"/snap",
	"/var/lib/docker",
	"/var/lib/containers",
	"/mnt/.ix-apps/docker/", // TrueNAS SCALE app overlays
}

// ShouldSkipFilesystem reports whether a mount is excluded before its usage
// is read, with the reasons that matched.
func ShouldSkipFilesystem(fsType, mountpoint string) (skip bool, reasons []string) {
	fsTypeLower := strings.ToLower(strings.TrimSpace(fsType))

	if virtualFSTypes[fsTypeLower] {
		reasons = append(reasons, "special-fs-type")
	}

	for _, pattern := range networkFSPatterns {
		if strings.Contains(fsTypeLower, pattern) {
			reasons = append(reasons, "network-fs")
			break
		}
	}

	for _, prefix := range specialMountPrefixes {
		if mountpoint == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(mountpoint, strings.TrimSuffix(prefix, "/")+"/") {
			reasons = append(reasons, "special-mountpoint")
			break
		}
	}

	if mountpoint == "/boot/efi" {
		reasons = append(reasons, "special-mountpoint")
	}

	// Container layers in non-standard locations, e.g. /srv/containers/x/overlay/merged
	if strings.Contains(mountpoint, "/containers/") &&
		(strings.Contains(mountpoint, "/overlay") || strings.HasSuffix(mountpoint, "/merged")) {
		reasons = append(reasons, "container-overlay")
	}

	return len(reasons) > 0, reasons
}

// MatchesExclude reports whether a mountpoint or device matches one of the
// user's wildcard patterns ("/mnt/backup", "/mnt/ext*", "*pbs*", "sdb*").
// Devices are tried with and without their /dev/ prefix.
func MatchesExclude(device, mountpoint string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if mountpoint != "" && wildcard.Match(pattern, mountpoint) {
			return true
		}
		if device != "" && (wildcard.Match(pattern, device) || wildcard.Match(pattern, strings.TrimPrefix(device, "/dev/"))) {
			return true
		}
	}
	return false
}
