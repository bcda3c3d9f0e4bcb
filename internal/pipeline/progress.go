package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// progressFields summarizes all running inputs for the metrics collector
func progressFields(all []*Stats, start time.Time) []zap.Field {
	var elements, bytesRead, totalBytes int64
	for _, s := range all {
		elements += s.Elements()
		bytesRead += s.BytesRead.Load()
		totalBytes += s.TotalBytes.Load()
	}

	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.Int64("elements", elements),
		zap.String("throughput", FormatThroughput(float64(elements)/elapsed.Seconds())),
		zap.String("read", FormatBytes(bytesRead)),
	}

	if totalBytes > 0 && bytesRead > 0 && bytesRead < totalBytes {
		pct := float64(bytesRead) / float64(totalBytes) * 100
		eta := time.Duration(float64(elapsed) * float64(totalBytes-bytesRead) / float64(bytesRead))
		fields = append(fields,
			zap.String("progress", fmt.Sprintf("%.1f%%", pct)),
			zap.String("eta", FormatETA(eta)),
		)
	}
	return fields
}

// FormatETA formats the ETA duration in a human-readable format
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatThroughput formats throughput as human-readable items per second
func FormatThroughput(itemsPerSec float64) string {
	if itemsPerSec >= 1_000_000 {
		return fmt.Sprintf("%.1fM/s", itemsPerSec/1_000_000)
	}
	if itemsPerSec >= 1_000 {
		return fmt.Sprintf("%.1fK/s", itemsPerSec/1_000)
	}
	return fmt.Sprintf("%.0f/s", itemsPerSec)
}

// FormatBytes formats bytes in a human-readable format
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
