// Package bco assembles IEEE-2791 BioCompute Objects from process chains.
package bco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eleven-am/playbook/internal/adapters/chain"
	"github.com/eleven-am/playbook/internal/adapters/engine"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"golang.org/x/sync/errgroup"
)

const defaultName = "Playbook"

type Metadata struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Author struct {
	Name        string `json:"name" yaml:"name"`
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
	ORCID       string `json:"orcid,omitempty" yaml:"orcid,omitempty"`
}

type ExportOptions struct {
	Metadata *Metadata
	Author   *Author
	// Execute runs resolve functions to produce stories. Without it the
	// export only uses literal data and cached values, and omits the stories
	// of steps that are not available.
	Execute bool
}

type Exporter struct {
	registry ports.NodeRegistryPort
	engine   *engine.Engine
	config   domain.ExportConfig
	now      func() time.Time
	logger   *slog.Logger
}

func NewExporter(registry ports.NodeRegistryPort, eng *engine.Engine, config domain.ExportConfig, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		registry: registry,
		engine:   eng,
		config:   config,
		now:      time.Now,
		logger:   logger.With("component", "bco"),
	}
}

// WithClock replaces the time source used for document timestamps.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

type stepInfo struct {
	step  domain.Step
	node  *ports.ProcessNode
	story string
}

// Export builds the provenance document of c. The chain is never modified.
// Any failure aborts the export; no partial document is returned.
func (e *Exporter) Export(ctx context.Context, c chain.Chain, opts ExportOptions) (doc *domain.BCO, err error) {
	ctx, span := e.engine.Tracer().Start(ctx, "playbook.export", map[string]any{
		"chain.id": c.ID(),
		"execute":  opts.Execute,
	})
	start := time.Now()
	defer func() {
		e.engine.Metrics().ObserveExport(time.Since(start), err)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	steps := c.Resolve()
	if len(steps) == 0 {
		return nil, domain.NewExportError("resolve", fmt.Errorf("%w: empty chain", domain.ErrInvalidInput))
	}

	infos := make([]stepInfo, len(steps))
	index := make(map[string]int, len(steps))
	for i, step := range steps {
		node, err := e.registry.ProcessNode(step.Process.Type)
		if err != nil {
			return nil, domain.NewExportError("lookup", err)
		}
		infos[i] = stepInfo{step: step, node: node}
		index[step.Process.ID] = i
	}

	story := ""
	if opts.Metadata != nil && opts.Metadata.Description != "" {
		story = opts.Metadata.Description
	} else {
		if err := e.stories(ctx, c, infos, opts.Execute); err != nil {
			return nil, err
		}
		parts := make([]string, 0, len(infos))
		for _, info := range infos {
			if info.story != "" {
				parts = append(parts, info.story)
			}
		}
		story, err = Citations(strings.Join(parts, " "))
		if err != nil {
			return nil, domain.NewExportError("citations", err)
		}
	}

	now := domain.BCOTime(e.now())
	last := steps[len(steps)-1].ID
	publicURL := strings.TrimRight(e.config.PublicURL, "/")

	base := domain.BaseBCO{
		UsabilityDomain: []string{story},
		ProvenanceDomain: domain.ProvenanceDomain{
			Name:         defaultName,
			Version:      e.config.Version,
			License:      e.config.License,
			DerivedFrom:  fmt.Sprintf("%s/report/%s", publicURL, last),
			Created:      now,
			Modified:     now,
			Contributors: contributors(opts.Author, infos),
			Review:       []domain.Review{},
		},
		DescriptionDomain: domain.DescriptionDomain{
			Keywords:      keywords(infos),
			Platform:      append([]string{}, e.config.Platform...),
			PipelineSteps: pipelineSteps(infos, index, now),
		},
		ParametricDomain: parameters(infos),
		ExecutionDomain:  e.execution(now),
		IODomain: domain.IODomain{
			InputSubdomain: []domain.InputSubdomain{
				{URI: domain.URI{URI: fmt.Sprintf("%s/api/db/fpl/%s", publicURL, last)}},
			},
			OutputSubdomain: []domain.OutputSubdomain{
				{MediaType: "application/json", URI: domain.URI{URI: fmt.Sprintf("%s/api/db/fpl/%s/output", publicURL, last)}},
			},
		},
	}
	if opts.Metadata != nil && opts.Metadata.Title != "" {
		base.ProvenanceDomain.Name = opts.Metadata.Title
	}

	etag, err := ETag(base)
	if err != nil {
		return nil, domain.NewExportError("etag", err)
	}

	e.logger.Debug("exported chain", "chain_id", c.ID(), "steps", len(steps), "etag", etag)
	return &domain.BCO{
		SpecVersion: domain.BCOSpecVersion,
		ETag:        etag,
		BaseBCO:     base,
	}, nil
}

func (e *Exporter) stories(ctx context.Context, c chain.Chain, infos []stepInfo, execute bool) error {
	pass := e.engine.NewPass(ctx, c, engine.PassOptions{Dry: !execute})
	defer pass.Close()

	g, gctx := errgroup.WithContext(ctx)
	for i := range infos {
		info := &infos[i]
		if info.node.Story == nil {
			continue
		}
		g.Go(func() error {
			proc := info.step.Process
			inputs, err := pass.DecodeCompleteInputs(gctx, proc)
			if err == nil {
				var output any
				output, err = pass.DecodeCompleteOutput(gctx, proc)
				if err == nil {
					info.story = info.node.Story(ports.StoryProps{Inputs: inputs, Output: output})
					return nil
				}
			}
			if !execute && errors.Is(err, domain.ErrNotResolved) {
				e.logger.Debug("omitting story of unresolved step", "process_id", proc.ID, "type", proc.Type)
				return nil
			}
			return domain.NewExportError("resolve", err)
		})
	}
	return g.Wait()
}

func (e *Exporter) execution(now string) domain.ExecutionDomain {
	prereqs := make([]domain.SoftwarePrerequisite, len(e.config.SoftwarePrerequisites))
	for i, p := range e.config.SoftwarePrerequisites {
		p.URI.AccessTime = now
		prereqs[i] = p
	}
	return domain.ExecutionDomain{
		Script: []domain.Script{
			{URI: domain.URI{URI: e.config.ScriptURI, Filename: e.config.ScriptFilename}},
		},
		ScriptDriver:          e.config.ScriptDriver,
		SoftwarePrerequisites: prereqs,
		ExternalDataEndpoints: []domain.DataEndpoint{},
		EnvironmentVariables:  map[string]string{},
	}
}

func outputURI(index int) string {
	return fmt.Sprintf("#/%d/process/output", index)
}

func pipelineSteps(infos []stepInfo, index map[string]int, now string) []domain.PipelineStep {
	out := make([]domain.PipelineStep, len(infos))
	for i, info := range infos {
		step := domain.PipelineStep{
			StepNumber:   i + 1,
			Name:         info.node.Meta.Label,
			Description:  info.node.Meta.Description,
			Version:      info.node.Meta.Version,
			Prerequisite: []domain.Prerequisite{},
			InputList:    []domain.URI{},
			OutputList:   []domain.URI{{URI: outputURI(i), AccessTime: now}},
		}
		for _, slot := range info.node.Inputs {
			for _, ref := range info.step.Process.Inputs[slot.Name] {
				k := index[ref]
				uri := domain.URI{URI: outputURI(k), AccessTime: now}
				step.Prerequisite = append(step.Prerequisite, domain.Prerequisite{
					Name: fmt.Sprintf("Output of step %d", k+1),
					URI:  uri,
				})
				step.InputList = append(step.InputList, uri)
			}
		}
		out[i] = step
	}
	return out
}

func keywords(infos []stepInfo) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, info := range infos {
		for _, category := range info.node.Meta.TagCategories() {
			if _, ok := seen[category]; ok {
				continue
			}
			seen[category] = struct{}{}
			out = append(out, category)
		}
	}
	return out
}

func parameters(infos []stepInfo) []domain.Parameter {
	out := []domain.Parameter{}
	for i, info := range infos {
		proc := info.step.Process
		if !proc.HasData() {
			continue
		}
		out = append(out, domain.Parameter{
			Step:  fmt.Sprintf("%d", i+1),
			Param: "stdin",
			Value: string(proc.Data),
		})
	}
	return out
}

// contributors lists the explicit author first, then every node author
// once. Names are the identity.
func contributors(author *Author, infos []stepInfo) []domain.Contributor {
	out := []domain.Contributor{}
	seen := map[string]struct{}{}

	if author != nil && author.Name != "" {
		seen[author.Name] = struct{}{}
		out = append(out, domain.Contributor{
			Name:         author.Name,
			Affiliation:  author.Affiliation,
			Email:        author.Email,
			ORCID:        author.ORCID,
			Contribution: []string{"authoredBy"},
		})
	}

	for _, info := range infos {
		if info.node.Meta.Author == "" {
			continue
		}
		parsed := domain.ParseAuthor(info.node.Meta.Author)
		if _, ok := seen[parsed.Name]; ok {
			continue
		}
		seen[parsed.Name] = struct{}{}
		out = append(out, domain.Contributor{
			Name:         parsed.Name,
			Email:        parsed.Email,
			Contribution: []string{"contributedBy"},
		})
	}
	return out
}
