package api

// Clone returns a deep copy of j so callers can hand out views without
// sharing pointer fields.
func (j Job) Clone() Job {
	out := j
	out.ResultPath = clonePtr(j.ResultPath)
	out.Error = clonePtr(j.Error)
	out.CreatedAt = clonePtr(j.CreatedAt)
	out.StartedAt = clonePtr(j.StartedAt)
	out.FinishedAt = clonePtr(j.FinishedAt)
	out.ProgressPercent = clonePtr(j.ProgressPercent)
	out.ProgressDownloaded = clonePtr(j.ProgressDownloaded)
	out.ProgressTotal = clonePtr(j.ProgressTotal)
	out.ProgressSpeedBPS = clonePtr(j.ProgressSpeedBPS)
	out.ProgressETASeconds = clonePtr(j.ProgressETASeconds)
	out.ProgressStage = clonePtr(j.ProgressStage)
	out.ProgressMessage = clonePtr(j.ProgressMessage)
	return out
}

// Apply merges the non-nil fields of p into j. Nil fields leave j untouched.
func (j *Job) Apply(p Progress) {
	if p.Percent != nil {
		j.ProgressPercent = clonePtr(p.Percent)
	}
	if p.Downloaded != nil {
		j.ProgressDownloaded = clonePtr(p.Downloaded)
	}
	if p.Total != nil {
		j.ProgressTotal = clonePtr(p.Total)
	}
	if p.SpeedBPS != nil {
		j.ProgressSpeedBPS = clonePtr(p.SpeedBPS)
	}
	if p.ETASeconds != nil {
		j.ProgressETASeconds = clonePtr(p.ETASeconds)
	}
	if p.Stage != nil {
		j.ProgressStage = clonePtr(p.Stage)
	}
	if p.Message != nil {
		j.ProgressMessage = clonePtr(p.Message)
	}
}

// Empty reports whether p carries no fields.
func (p Progress) Empty() bool {
	return p.Percent == nil && p.Downloaded == nil && p.Total == nil &&
		p.SpeedBPS == nil && p.ETASeconds == nil && p.Stage == nil && p.Message == nil
}

// Clone returns a deep copy of p.
func (p Progress) Clone() Progress {
	return Progress{
		Percent:    clonePtr(p.Percent),
		Downloaded: clonePtr(p.Downloaded),
		Total:      clonePtr(p.Total),
		SpeedBPS:   clonePtr(p.SpeedBPS),
		ETASeconds: clonePtr(p.ETASeconds),
		Stage:      clonePtr(p.Stage),
		Message:    clonePtr(p.Message),
	}
}

// CloneJobs deep-copies a job slice.
func CloneJobs(jobs []Job) []Job {
	if jobs == nil {
		return nil
	}
	out := make([]Job, len(jobs))
	for i, job := range jobs {
		out[i] = job.Clone()
	}
	return out
}

// Ptr returns a pointer to v. Handy when building patches by hand.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
