package task

import (
	"time"
)

type PatchOption func(*Patch)

// NewPatch applies opts in order; nil options are skipped.
func NewPatch(opts ...PatchOption) Patch {
	var p Patch
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	return p
}

func WithTitle(title string) PatchOption {
	return func(p *Patch) {
		p.Title = &title
	}
}

func WithDescription(description string) PatchOption {
	return func(p *Patch) {
		p.Description = &description
		p.ClearDescription = false
	}
}

func WithoutDescription() PatchOption {
	return func(p *Patch) {
		p.Description = nil
		p.ClearDescription = true
	}
}

func WithDueDate(dueDate time.Time) PatchOption {
	if dueDate.IsZero() {
		return nil
	}
	return func(p *Patch) {
		p.DueDate = &dueDate
		p.ClearDueDate = false
	}
}

func WithoutDueDate() PatchOption {
	return func(p *Patch) {
		p.DueDate = nil
		p.ClearDueDate = true
	}
}

func WithPriority(priority Priority) PatchOption {
	return func(p *Patch) {
		p.Priority = &priority
		p.ClearPriority = false
	}
}

func WithoutPriority() PatchOption {
	return func(p *Patch) {
		p.Priority = nil
		p.ClearPriority = true
	}
}

func WithComplete(done bool) PatchOption {
	return func(p *Patch) {
		p.IsComplete = &done
	}
}
