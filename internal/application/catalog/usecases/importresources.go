package usecases

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

// ResourceCreator is the slice of the catalog store this use case needs.
type ResourceCreator interface {
	Create(ctx context.Context, d catalog.Draft) (*catalog.Resource, error)
}

// ImportFile is the YAML layout accepted by the catalog import command.
//
//	resources:
//	  - name: Launch Checklist
//	    origin_kind: OWNED
//	    value_category: FREE
type ImportFile struct {
	Resources []catalog.Draft `yaml:"resources"`
}

// ParseImportFile decodes an import file. Unknown keys are rejected so typos
// do not silently drop fields.
func ParseImportFile(r io.Reader) (*ImportFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f ImportFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}
	return &f, nil
}

type ImportResourcesRequest struct {
	Drafts []catalog.Draft
	// StopOnLimit ends the import at the first limit_reached rejection,
	// since every later create would be rejected the same way.
	StopOnLimit bool
}

type ImportFailure struct {
	Name    string
	Kind    shared.Kind
	Message string
}

type ImportResourcesResult struct {
	Created []*catalog.Resource
	Failed  []ImportFailure
	Skipped int
}

// ImportResourcesUseCase creates resources in bulk through the catalog store,
// so every create is subject to the same uniqueness and limit rules as the API.
type ImportResourcesUseCase struct {
	store  ResourceCreator
	logger logger.Interface
}

func NewImportResourcesUseCase(store ResourceCreator, logger logger.Interface) *ImportResourcesUseCase {
	return &ImportResourcesUseCase{
		store:  store,
		logger: logger,
	}
}

// Execute creates drafts in order. Individual failures are collected, not returned.
func (uc *ImportResourcesUseCase) Execute(ctx context.Context, req ImportResourcesRequest) (*ImportResourcesResult, error) {
	result := &ImportResourcesResult{}

	for i, d := range req.Drafts {
		if err := ctx.Err(); err != nil {
			result.Skipped = len(req.Drafts) - i
			return result, err
		}

		r, err := uc.store.Create(ctx, d)
		if err == nil {
			result.Created = append(result.Created, r)
			continue
		}

		failure := ImportFailure{Name: d.Name, Message: err.Error()}
		if opErr, ok := shared.AsOperationError(err); ok {
			failure.Kind = opErr.Kind
			failure.Message = opErr.Message()
		}
		result.Failed = append(result.Failed, failure)

		if req.StopOnLimit && failure.Kind == shared.KindLimitReached {
			result.Skipped = len(req.Drafts) - i - 1
			break
		}
	}

	uc.logger.Infow("resource import finished",
		"created", len(result.Created),
		"failed", len(result.Failed),
		"skipped", result.Skipped,
	)
	return result, nil
}
