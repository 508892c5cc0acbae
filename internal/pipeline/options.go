package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dl-alexandre/docloader/internal/utils"
)

// Discipline selects how payloads are fetched
type Discipline string

const (
	// DisciplineAuto defers to the backend's default
	DisciplineAuto Discipline = "auto"
	// DisciplineSequential fetches and decodes one file at a time in discovery order
	DisciplineSequential Discipline = "sequential"
	// DisciplineParallel fetches through a bounded worker pool, then decodes sequentially
	DisciplineParallel Discipline = "parallel"
)

// ParseDiscipline parses a discipline name; empty means auto
func ParseDiscipline(s string) (Discipline, error) {
	switch Discipline(strings.ToLower(strings.TrimSpace(s))) {
	case "", DisciplineAuto:
		return DisciplineAuto, nil
	case DisciplineSequential:
		return DisciplineSequential, nil
	case DisciplineParallel:
		return DisciplineParallel, nil
	default:
		return "", fmt.Errorf("invalid discipline: %s (must be one of: auto, sequential, parallel)", s)
	}
}

// Options tunes a pipeline run
type Options struct {
	// WorkerPoolSize bounds concurrent fetches in the parallel discipline
	WorkerPoolSize int
	// Discipline overrides the backend default unless auto
	Discipline Discipline
	// InterFilePause is slept between files in the sequential discipline
	InterFilePause time.Duration
	// Exclude drops discovered entries whose relative path matches a pattern
	Exclude []string
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		WorkerPoolSize: utils.DefaultWorkerPool,
		Discipline:     DisciplineAuto,
	}
}

func (o Options) poolSize(n int) int {
	size := o.WorkerPoolSize
	if size < 1 {
		size = utils.DefaultWorkerPool
	}
	if n > 0 && n < size {
		size = n
	}
	return size
}
