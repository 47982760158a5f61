package dto

import (
	"testing"
	"time"

	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/google/uuid"
)

func TestNewOfferDTO(t *testing.T) {
	name := "Backend"
	cluster := 2
	o := model.Offer{
		ID:        7,
		Title:     "Développeur Go",
		Date:      "2024-03-01",
		Source:    model.SourceAPEC,
		Company:   model.Company{Name: "Acme"},
		City:      model.City{Name: "Lyon", Region: model.Region{Code: "84"}},
		ClusterID: &cluster,
		Cluster:   &model.Cluster{ID: 2, Name: &name},
		Skills:    []model.Skill{{Label: "Go"}, {Label: "SQL"}},
	}
	got := NewOfferDTO(o)
	if got.Company != "Acme" || got.City != "Lyon" || got.Region != "84" {
		t.Errorf("NewOfferDTO() place = %s/%s/%s, want Acme/Lyon/84", got.Company, got.City, got.Region)
	}
	if got.ClusterName == nil || *got.ClusterName != "Backend" || *got.ClusterID != 2 {
		t.Errorf("NewOfferDTO() cluster = %v %v, want 2 Backend", got.ClusterID, got.ClusterName)
	}
	if len(got.Skills) != 2 || got.Skills[1] != "SQL" {
		t.Errorf("NewOfferDTO() skills = %v, want [Go SQL]", got.Skills)
	}
	if got.Degrees != nil {
		t.Errorf("NewOfferDTO() degrees = %v, want nil", got.Degrees)
	}
}

func TestNewPipelineRunDTO(t *testing.T) {
	run := &model.PipelineRun{
		ID:        uuid.New(),
		Kind:      model.RunKindFitKMeans,
		Status:    model.RunStatusCompleted,
		Params:    `{"k":3}`,
		Report:    `{"k":3,"offers":10}`,
		CreatedAt: time.Now(),
	}
	got := NewPipelineRunDTO(run)
	if string(got.Params) != `{"k":3}` || string(got.Report) != run.Report {
		t.Errorf("NewPipelineRunDTO() = params %s report %s", got.Params, got.Report)
	}
	if got.ID != run.ID || got.Status != model.RunStatusCompleted {
		t.Errorf("NewPipelineRunDTO() = %v %s", got.ID, got.Status)
	}
}
