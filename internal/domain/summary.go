package domain

import "time"

// DomainSummary reports the outcome of one adapter.
type DomainSummary struct {
	Domain         string        `json:"domain"`
	Fields         int           `json:"fields"`
	Lookups        int           `json:"lookups"`
	UpstreamErrors int           `json:"upstream_errors"`
	Statuses       StatusCounts  `json:"statuses"`
	Duration       time.Duration `json:"duration"`
	Skipped        bool          `json:"skipped,omitempty"`
}

// RunSummary reports the outcome of one pipeline run.
type RunSummary struct {
	RunID       string          `json:"run_id"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    time.Duration   `json:"duration"`
	Records     int             `json:"records"`
	Drugs       int             `json:"drugs"`
	Ambiguous   int             `json:"ambiguous"`
	Domains     []DomainSummary `json:"domains"`
	OutputPath  string          `json:"output_path"`
	Unknowns    int             `json:"unknowns"`
	Dictionary  int             `json:"dictionary_entries"`
	SinkRecords int             `json:"sink_records"`
}

// Domain returns the summary of name, or nil.
func (s *RunSummary) Domain(name string) *DomainSummary {
	for i := range s.Domains {
		if s.Domains[i].Domain == name {
			return &s.Domains[i]
		}
	}
	return nil
}

// DictionaryEntry is one resolved raw value kept in the dictionary store.
type DictionaryEntry struct {
	Domain    string      `json:"domain"`
	RawValue  string      `json:"raw_value"`
	StableID  string      `json:"stable_id,omitempty"`
	Label     string      `json:"label,omitempty"`
	Status    MatchStatus `json:"match_status"`
	Score     float64     `json:"match_score"`
	RunID     string      `json:"run_id"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// UnknownRow is one line of the unknowns report.
type UnknownRow struct {
	EntryID   RecordID `json:"entry_id"`
	DrugIndex int      `json:"drug_index"`
	DrugName  string   `json:"drug_name"`
	Domain    string   `json:"domain"`
	Input     string   `json:"input"`
}
