package dto

import (
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/goccy/go-json"
)

// NewOfferDTO flattens an offer loaded with its relations.
func NewOfferDTO(o model.Offer) OfferDTO {
	out := OfferDTO{
		ID:            o.ID,
		Title:         o.Title,
		JobName:       o.JobName,
		JobType:       o.JobType,
		ContractType:  o.ContractType,
		SalaryLabel:   o.SalaryLabel,
		SalaryMin:     o.SalaryMin,
		SalaryMax:     o.SalaryMax,
		MinExperience: o.MinExperience,
		Latitude:      o.Latitude,
		Longitude:     o.Longitude,
		Date:          o.Date,
		Source:        o.Source,
		Company:       o.Company.Name,
		City:          o.City.Name,
		Region:        o.City.Region.Code,
		ClusterID:     o.ClusterID,
		CreatedAt:     o.CreatedAt,
	}
	if o.Cluster != nil {
		out.ClusterName = o.Cluster.Name
	}
	for _, s := range o.Skills {
		out.Skills = append(out.Skills, s.Label)
	}
	for _, d := range o.Degrees {
		out.Degrees = append(out.Degrees, d.Label)
	}
	return out
}

func NewOfferDTOs(offers []model.Offer) []OfferDTO {
	out := make([]OfferDTO, len(offers))
	for i, o := range offers {
		out[i] = NewOfferDTO(o)
	}
	return out
}

func NewPipelineRunDTO(run *model.PipelineRun) PipelineRunDTO {
	out := PipelineRunDTO{
		ID:        run.ID,
		Kind:      run.Kind,
		Status:    run.Status,
		Error:     run.Error,
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
	if run.Params != "" {
		out.Params = json.RawMessage(run.Params)
	}
	if run.Report != "" {
		out.Report = json.RawMessage(run.Report)
	}
	return out
}
