package syncer

import (
	"context"
	"fmt"

	"coursesync/internal/crm"
)

const DefaultPipelineName = "Course Enrollments"

// DefaultPipelineStages — порядок фиксирован.
var DefaultPipelineStages = []string{"New Enrollment", "Course In Progress", "Course Completed", "Certified"}

func GetPipelines(ctx context.Context, api crm.API) ([]crm.Pipeline, error) {
	return api.GetPipelines(ctx)
}

// CreateDefaultCoursePipeline возвращает существующую воронку с точным именем
// или создаёт её. Две параллельные первые синхронизации могут создать две.
func CreateDefaultCoursePipeline(ctx context.Context, api crm.API) (*crm.Pipeline, error) {
	pipelines, err := api.GetPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	for i := range pipelines {
		if pipelines[i].Name == DefaultPipelineName {
			return &pipelines[i], nil
		}
	}
	p, err := api.CreatePipeline(ctx, DefaultPipelineName, DefaultPipelineStages)
	if err != nil {
		return nil, fmt.Errorf("create pipeline %q: %w", DefaultPipelineName, err)
	}
	return p, nil
}

// MoveToStage не проверяет принадлежность этапа воронке.
func MoveToStage(ctx context.Context, api crm.API, contactID, pipelineID, stageID string) error {
	if _, err := api.MoveContactToStage(ctx, contactID, pipelineID, stageID); err != nil {
		return fmt.Errorf("move contact %s to stage %s: %w", contactID, stageID, err)
	}
	return nil
}

// routeEnrollment: явные pipeline+stage; только pipeline — его первый этап;
// только stage — воронка, которой этот этап принадлежит; иначе воронка по
// умолчанию и её первый этап.
func routeEnrollment(ctx context.Context, api crm.API, contactID, pipelineID, stageID string) error {
	if pipelineID != "" && stageID != "" {
		return MoveToStage(ctx, api, contactID, pipelineID, stageID)
	}

	var target *crm.Pipeline
	switch {
	case pipelineID != "" || stageID != "":
		pipelines, err := api.GetPipelines(ctx)
		if err != nil {
			return fmt.Errorf("list pipelines: %w", err)
		}
		if stageID != "" {
			for _, p := range pipelines {
				for _, st := range p.Stages {
					if st.ID == stageID {
						return MoveToStage(ctx, api, contactID, p.ID, stageID)
					}
				}
			}
			return fmt.Errorf("stage %s not found in any pipeline", stageID)
		}
		for i := range pipelines {
			if pipelines[i].ID == pipelineID {
				target = &pipelines[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("pipeline %s not found", pipelineID)
		}
	default:
		p, err := CreateDefaultCoursePipeline(ctx, api)
		if err != nil {
			return err
		}
		target = p
	}

	first, ok := target.FirstStage()
	if !ok {
		return fmt.Errorf("pipeline %s has no stages", target.ID)
	}
	return MoveToStage(ctx, api, contactID, target.ID, first.ID)
}
