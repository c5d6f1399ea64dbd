package pipeline

import "github.com/promptdeck/promptdeck-api/internal/domain"

// Config is the process-wide automation policy: which job kinds the
// pipeline schedules automatically, how batches are chunked, and the default
// priority of created jobs. It is owned by the Pipeline instance and mutated
// only through UpdateConfig.
type Config struct {
	EnableAutoClassification bool               `json:"enable_auto_classification"`
	EnableAutoOptimization   bool               `json:"enable_auto_optimization"`
	EnableDuplicateDetection bool               `json:"enable_duplicate_detection"`
	EnableQualityAssessment  bool               `json:"enable_quality_assessment"`
	BatchSize                int                `json:"batch_size"`
	Priority                 domain.JobPriority `json:"priority"`
}

// DefaultConfig returns the startup policy: everything enabled, batches of
// 10, normal priority.
func DefaultConfig() Config {
	return Config{
		EnableAutoClassification: true,
		EnableAutoOptimization:   true,
		EnableDuplicateDetection: true,
		EnableQualityAssessment:  true,
		BatchSize:                10,
		Priority:                 domain.JobPriorityNormal,
	}
}

// ConfigUpdate is a partial config mutation: nil fields retain their prior
// values.
type ConfigUpdate struct {
	EnableAutoClassification *bool               `json:"enable_auto_classification,omitempty"`
	EnableAutoOptimization   *bool               `json:"enable_auto_optimization,omitempty"`
	EnableDuplicateDetection *bool               `json:"enable_duplicate_detection,omitempty"`
	EnableQualityAssessment  *bool               `json:"enable_quality_assessment,omitempty"`
	BatchSize                *int                `json:"batch_size,omitempty"`
	Priority                 *domain.JobPriority `json:"priority,omitempty"`
}

// apply merges the update into cfg and returns the result.
func (u ConfigUpdate) apply(cfg Config) Config {
	if u.EnableAutoClassification != nil {
		cfg.EnableAutoClassification = *u.EnableAutoClassification
	}
	if u.EnableAutoOptimization != nil {
		cfg.EnableAutoOptimization = *u.EnableAutoOptimization
	}
	if u.EnableDuplicateDetection != nil {
		cfg.EnableDuplicateDetection = *u.EnableDuplicateDetection
	}
	if u.EnableQualityAssessment != nil {
		cfg.EnableQualityAssessment = *u.EnableQualityAssessment
	}
	if u.BatchSize != nil && *u.BatchSize > 0 {
		cfg.BatchSize = *u.BatchSize
	}
	if u.Priority != nil {
		cfg.Priority = *u.Priority
	}
	return cfg
}
