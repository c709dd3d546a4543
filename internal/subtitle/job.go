package subtitle

import "sync"

// ChunkSize is the number of subtitle lines translated per request.
const ChunkSize = 100

// Range is an inclusive line range.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start + 1
}

// Partition splits total lines into consecutive ranges of at most size lines.
func Partition(total, size int) []Range {
	if total <= 0 || size <= 0 {
		return nil
	}
	out := make([]Range, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		out = append(out, Range{Start: start, End: min(start+size, total) - 1})
	}
	return out
}

// Job holds one generation run. Results are indexed by chunk so completion
// order never affects assembly.
type Job struct {
	Chunks  []Range
	Results []string

	mu        sync.Mutex
	completed int
}

func NewJob(totalLines int) *Job {
	chunks := Partition(totalLines, ChunkSize)
	return &Job{Chunks: chunks, Results: make([]string, len(chunks))}
}

// Settle stores the result of chunk i and returns the overall percentage,
// rounded down.
func (j *Job) Settle(i int, text string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results[i] = text
	j.completed++
	return j.completed * 100 / len(j.Chunks)
}
