package registry

import (
	"time"

	"github.com/modelyard/selector/core"
)

// Run kinds as reported by the training pipeline.
const (
	KindRegression = "regression"
	KindBinary     = "binary"
	KindMulticlass = "multiclass"
)

// Multiclass holds the nested multiclass accuracy figures.
type Multiclass struct {
	MicroAccuracy *float64 `json:"micro_accuracy,omitempty" yaml:"micro_accuracy,omitempty"`
	MacroAccuracy *float64 `json:"macro_accuracy,omitempty" yaml:"macro_accuracy,omitempty"`
}

// Record is the wire shape of one evaluation record as persisted by the
// metrics pipeline. Every metric is independently optional; which subset is
// populated depends on the run kind.
type Record struct {
	ID        string    `json:"id" yaml:"id"`
	ModelName string    `json:"model_name" yaml:"model_name"`
	Artifact  string    `json:"artifact" yaml:"artifact"` // source artifact filename
	Kind      string    `json:"kind" yaml:"kind"`         // regression|binary|multiclass
	TrainedAt time.Time `json:"trained_at" yaml:"trained_at"`

	RSquared         *float64    `json:"r_squared,omitempty" yaml:"r_squared,omitempty"`
	RMSE             *float64    `json:"rmse,omitempty" yaml:"rmse,omitempty"`
	MAE              *float64    `json:"mae,omitempty" yaml:"mae,omitempty"`
	MSE              *float64    `json:"mse,omitempty" yaml:"mse,omitempty"`
	Loss             *float64    `json:"loss,omitempty" yaml:"loss,omitempty"`
	AUC              *float64    `json:"auc,omitempty" yaml:"auc,omitempty"`
	Accuracy         *float64    `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	F1               *float64    `json:"f1,omitempty" yaml:"f1,omitempty"`
	Precision        *float64    `json:"precision,omitempty" yaml:"precision,omitempty"`
	Recall           *float64    `json:"recall,omitempty" yaml:"recall,omitempty"`
	LogLoss          *float64    `json:"log_loss,omitempty" yaml:"log_loss,omitempty"`
	LogLossReduction *float64    `json:"log_loss_reduction,omitempty" yaml:"log_loss_reduction,omitempty"`
	Multiclass       *Multiclass `json:"multiclass,omitempty" yaml:"multiclass,omitempty"`
}

// Evaluation converts the wire record into the engine's record shape.
func (r Record) Evaluation() core.EvaluationRecord {
	rec := core.EvaluationRecord{
		ID:               r.ID,
		ModelName:        r.ModelName,
		Artifact:         r.Artifact,
		TrainedAt:        r.TrainedAt,
		RSquared:         r.RSquared,
		RMSE:             r.RMSE,
		MAE:              r.MAE,
		MSE:              r.MSE,
		Loss:             r.Loss,
		AUC:              r.AUC,
		Accuracy:         r.Accuracy,
		F1:               r.F1,
		Precision:        r.Precision,
		Recall:           r.Recall,
		LogLoss:          r.LogLoss,
		LogLossReduction: r.LogLossReduction,
	}
	if r.Multiclass != nil {
		rec.Multiclass = &core.MulticlassMetrics{
			MicroAccuracy: r.Multiclass.MicroAccuracy,
			MacroAccuracy: r.Multiclass.MacroAccuracy,
		}
	}
	return rec
}

// Snapshot projects the record onto the regression-only shape used by the
// composite scorer. It reports false when either regression metric is missing;
// non-finite values are carried through and left to the scorer's gates.
func (r Record) Snapshot() (core.RegressionSnapshot, bool) {
	if r.RSquared == nil || r.RMSE == nil {
		return core.RegressionSnapshot{}, false
	}
	return core.RegressionSnapshot{
		ID:        r.ID,
		ModelName: r.ModelName,
		TrainedAt: r.TrainedAt,
		RSquared:  *r.RSquared,
		RMSE:      *r.RMSE,
	}, true
}

// Registry is the in-memory collection of evaluation records.
type Registry struct {
	Records []Record `json:"records" yaml:"records"`
}

// ByModel returns all records for a model name.
func (r *Registry) ByModel(name string) []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.ModelName == name {
			out = append(out, rec)
		}
	}
	return out
}

// ByKind returns all records of a run kind.
func (r *Registry) ByKind(kind string) []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// ByID returns the record with the given ID, or nil.
func (r *Registry) ByID(id string) *Record {
	for i := range r.Records {
		if r.Records[i].ID == id {
			return &r.Records[i]
		}
	}
	return nil
}

// Latest returns the most recently trained record for a model name, or nil.
func (r *Registry) Latest(name string) *Record {
	var latest *Record
	for i := range r.Records {
		rec := &r.Records[i]
		if rec.ModelName != name {
			continue
		}
		if latest == nil || rec.TrainedAt.After(latest.TrainedAt) {
			latest = rec
		}
	}
	return latest
}

// ModelNames returns the distinct model names in the registry.
func (r *Registry) ModelNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range r.Records {
		if !seen[rec.ModelName] {
			seen[rec.ModelName] = true
			names = append(names, rec.ModelName)
		}
	}
	return names
}

// Snapshots projects every record of a model that carries both regression
// metrics. Records lacking them are skipped.
func (r *Registry) Snapshots(name string) []core.RegressionSnapshot {
	var out []core.RegressionSnapshot
	for _, rec := range r.ByModel(name) {
		if s, ok := rec.Snapshot(); ok {
			out = append(out, s)
		}
	}
	return out
}

// TotalRecords returns the number of records in the registry.
func (r *Registry) TotalRecords() int {
	return len(r.Records)
}
