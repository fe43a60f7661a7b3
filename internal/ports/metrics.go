package ports

import "time"

type MetricsRecorder interface {
	ObserveResolve(processType string, duration time.Duration, err error)
	CacheHit(layer string)
	ObserveExport(duration time.Duration, err error)
}
