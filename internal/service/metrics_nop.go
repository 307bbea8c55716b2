package service

import (
	"time"

	"taixiu-dealer/internal/core/domain"
)

// NopMetrics discards every observation. Used when metrics are disabled.
type NopMetrics struct{}

func (NopMetrics) RoundCommitted(int64)                          {}
func (NopMetrics) RoundSettled(domain.Settlement, time.Duration) {}
func (NopMetrics) CommentaryFallback(string)                     {}
func (NopMetrics) SessionStarted()                               {}
func (NopMetrics) SessionEnded()                                 {}
