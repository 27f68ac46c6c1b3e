//go:build unix

package resources

import "golang.org/x/sys/unix"

// diskUsagePercent returns the used share of the filesystem containing
// path, in percent.
func diskUsagePercent(path string) (float32, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}

	total := stat.Blocks * uint64(stat.Bsize)
	available := stat.Bavail * uint64(stat.Bsize)
	if total == 0 {
		return 0, nil
	}
	used := total - available
	return float32(used) / float32(total) * 100, nil
}
