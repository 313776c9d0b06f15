package app

import "syscall"

// DiskStats describes the filesystem holding the work directory. Datasets
// and detail CSVs accumulate there across runs.
type DiskStats struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// diskUsage reports usage for the filesystem containing path. Available
// space is what an unprivileged process can still write.
func diskUsage(path string) (DiskStats, bool) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return DiskStats{}, false
	}
	bsize := uint64(stat.Bsize)
	d := DiskStats{
		TotalBytes:     stat.Blocks * bsize,
		UsedBytes:      (stat.Blocks - stat.Bfree) * bsize,
		AvailableBytes: stat.Bavail * bsize,
	}
	if d.TotalBytes > 0 {
		d.UsedPercent = float64(d.UsedBytes) * 100 / float64(d.TotalBytes)
	}
	return d, true
}
