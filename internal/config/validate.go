// Package config provides configuration models and helpers for normalization
// runs.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"wellnorm/internal/fill"
	"wellnorm/internal/join"
	"wellnorm/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "sources.drilling.fetch.kind",
// "fill[1].method"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	p, err := config.Load(path)
//	if err != nil { ... }
//	issues := config.ValidatePipeline(p)
//	for _, iss := range issues {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}

	issues = append(issues, validateSource("sources.licensing", p.Sources.Licensing)...)
	issues = append(issues, validateSource("sources.drilling", p.Sources.Drilling)...)
	issues = append(issues, validateSource("sources.production", p.Sources.Production)...)
	issues = append(issues, validateJoin(p.Join)...)
	issues = append(issues, validateFill(p.Fill)...)
	issues = append(issues, validateOutput(p.Output)...)
	issues = append(issues, validateStorage(p.Storage)...)

	return issues
}

// validateSource validates one source block.
func validateSource(path string, s SourceConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Fetch.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".fetch.kind",
			Message:  "fetch.kind must not be empty",
		})
	} else {
		switch s.Fetch.Kind {
		case "file":
			if strings.TrimSpace(s.Fetch.File.Path) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".fetch.file.path",
					Message:  "file fetch requires a non-empty path",
				})
			}
		case "http":
			if strings.TrimSpace(s.Fetch.HTTP.URL) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".fetch.http.url",
					Message:  "http fetch requires a non-empty url",
				})
			}
			if s.Fetch.HTTP.LookbackMonths < 0 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".fetch.http.lookback_months",
					Message:  "lookback_months must not be negative",
				})
			}
			if s.Fetch.HTTP.LookbackMonths > 0 && !strings.Contains(s.Fetch.HTTP.URL, "{month}") {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".fetch.http.url",
					Message:  "lookback_months is set but the url has no {month} token; every probe fetches the same url",
				})
			}
		default:
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".fetch.kind",
				Message:  fmt.Sprintf("unknown fetch kind %q; ensure a matching implementation exists", s.Fetch.Kind),
			})
		}
	}

	if strings.TrimSpace(s.Parser.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".parser.kind",
			Message:  "parser.kind must not be empty",
		})
	} else if s.Parser.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path + ".parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; ensure a matching implementation exists", s.Parser.Kind),
		})
	}

	issues = append(issues, validateContract(path+".contract", s.Contract)...)
	return issues
}

// validateContract checks the inline schema contract for structural problems.
func validateContract(path string, c schema.Contract) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Source) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".source",
			Message:  "contract.source must not be empty",
		})
	}
	if len(c.Fields) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path + ".fields",
			Message:  "contract has no fields; it will not enforce anything",
		})
		return issues
	}

	seen := map[string]struct{}{}
	for i, f := range c.Fields {
		fpath := fmt.Sprintf("%s.fields[%d]", path, i)
		if strings.TrimSpace(f.Name) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fpath + ".name",
				Message:  "field name must not be empty",
			})
			continue
		}
		if _, dup := seen[f.Name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fpath + ".name",
				Message:  fmt.Sprintf("duplicate field %q", f.Name),
			})
		}
		seen[f.Name] = struct{}{}

		if !schema.KnownKind(f.Kind) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fpath + ".kind",
				Message:  fmt.Sprintf("unknown field kind %q", f.Kind),
			})
		}
		if f.MaxNullFraction < 0 || f.MaxNullFraction > 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fpath + ".max_null_fraction",
				Message:  fmt.Sprintf("max_null_fraction %v outside [0, 1]", f.MaxNullFraction),
			})
		}
	}
	return issues
}

// validateJoin checks the join plan.
func validateJoin(p join.Plan) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.WellColumn) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "join.well_column",
			Message:  "join.well_column must not be empty",
		})
	}
	if strings.TrimSpace(p.Production.Column) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "join.production.column",
			Message:  "join.production.column must not be empty",
		})
	}
	switch p.Production.Kind {
	case join.KeyWell, join.KeyLicence:
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "join.production.kind",
			Message:  `join.production.kind must be "well" or "licence"`,
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "join.production.kind",
			Message:  fmt.Sprintf("unknown production key kind %q", p.Production.Kind),
		})
	}
	if p.Production.Kind == join.KeyLicence && strings.TrimSpace(p.LicenceColumn) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "join.licence_column",
			Message:  "production joins on licence but join.licence_column is empty",
		})
	}

	for i, c := range p.Coalesce {
		if strings.TrimSpace(c.Column) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("join.coalesce[%d].column", i),
				Message:  "coalesce column must not be empty",
			})
		}
		for j, src := range c.Priority {
			if src != join.SourceLicensing && src != join.SourceDrilling {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("join.coalesce[%d].priority[%d]", i, j),
					Message:  fmt.Sprintf("unknown source %q; coalesce covers licensing and drilling", src),
				})
			}
		}
	}
	return issues
}

// validateFill checks the fill rule list.
func validateFill(rules []fill.Rule) []Issue {
	var issues []Issue

	if len(rules) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "fill",
			Message:  "no fill rules configured; the joined table is written with its gaps",
		})
		return issues
	}

	for i, r := range rules {
		if strings.TrimSpace(r.Target) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("fill[%d].target", i),
				Message:  "fill target must not be empty",
			})
		}
		if strings.TrimSpace(r.GroupKey) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("fill[%d].group_key", i),
				Message:  "fill group_key must not be empty",
			})
		}
		switch r.Method {
		case fill.FirstNonNull, fill.ForwardFill, fill.BackwardFill:
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("fill[%d].method", i),
				Message:  fmt.Sprintf("unknown fill method %q", r.Method),
			})
		}
		switch r.OnConflict {
		case "", fill.PreferEarliestRow, fill.PreferMostCompleteRow, fill.ErrorOnConflict:
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("fill[%d].on_conflict", i),
				Message:  fmt.Sprintf("unknown conflict policy %q", r.OnConflict),
			})
		}
	}
	return issues
}

// validateOutput checks the artifact configuration.
func validateOutput(o Output) []Issue {
	var issues []Issue

	if strings.TrimSpace(o.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.dir",
			Message:  "output.dir must not be empty",
		})
	}

	obj := o.ObjectStore
	if obj.Bucket != "" {
		if strings.TrimSpace(obj.Endpoint) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.object_store.endpoint",
				Message:  "object store upload requires an endpoint",
			})
		}
		if obj.AccessKeyEnv == "" || obj.SecretKeyEnv == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.object_store",
				Message:  "object store upload requires access_key_env and secret_key_env",
			})
		}
	}
	return issues
}

// validateStorage validates storage configuration and DB settings. An empty
// kind disables the sink and is not an error.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return issues
	}
	if s.Kind != "postgres" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	return issues
}
