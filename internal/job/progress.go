package job

// stepProgress computes percent complete from completed step weights,
// clamped to 99 so an unfinished job never reports 100.
func stepProgress(j *Job) int {
	total := 0
	done := 0
	for _, s := range j.Steps {
		total += s.Weight
		if s.Status == StepCompleted {
			done += s.Weight
		}
	}
	if total == 0 {
		return 0
	}
	pct := done * 100 / total
	if pct > 99 {
		pct = 99
	}
	return pct
}

// recordProgress computes percent complete from record counts for long
// running jobs (bulk export), with the same 99 clamp.
func recordProgress(j *Job) int {
	if j.TotalRecords <= 0 {
		return 0
	}
	pct := j.ProcessedRecords * 100 / j.TotalRecords
	if pct > 99 {
		pct = 99
	}
	return pct
}
