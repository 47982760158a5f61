package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OfferRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{db}
}

// InsertOffer stores one offer with its description, dimension rows, skills
// and degrees in a single transaction. A duplicate on (title, company, date)
// is not an error: the existing id is returned with inserted false.
func (r *OfferRepository) InsertOffer(ctx context.Context, p dto.OfferPayload) (id int64, inserted bool, err error) {
	if err := validation.ValidateStruct(&p); err != nil {
		return 0, false, fmt.Errorf("invalid offer: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		companyID, err := upsertCompany(tx, p.Company)
		if err != nil {
			return err
		}
		regionID, err := upsertRegion(tx, p.City.Region)
		if err != nil {
			return err
		}
		cityID, err := upsertCity(tx, p.City.Name, regionID)
		if err != nil {
			return err
		}

		if err := tx.SavePoint("offer_insert").Error; err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		desc := model.Description{OfferText: p.Description.OfferText, ProfileText: p.Description.ProfileText}
		if err := tx.Create(&desc).Error; err != nil {
			return fmt.Errorf("insert description: %w", err)
		}
		offer := model.Offer{
			Title:         p.Title,
			JobName:       p.JobName,
			JobType:       p.JobType,
			ContractType:  p.ContractType,
			SalaryLabel:   p.SalaryLabel,
			SalaryMin:     p.SalaryMin,
			SalaryMax:     p.SalaryMax,
			MinExperience: p.MinExperience,
			Latitude:      p.Latitude,
			Longitude:     p.Longitude,
			Date:          p.Date,
			Source:        p.Source,
			DescriptionID: desc.ID,
			CityID:        cityID,
			CompanyID:     companyID,
		}
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "title"}, {Name: "company_id"}, {Name: "date"}},
			DoNothing: true,
		}).Create(&offer)
		if res.Error != nil {
			return fmt.Errorf("insert offer: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Duplicate: drop the description written for it.
			if err := tx.RollbackTo("offer_insert").Error; err != nil {
				return fmt.Errorf("rollback duplicate: %w", err)
			}
			var existing model.Offer
			err := tx.Select("id").
				Where("title = ? AND company_id = ? AND date = ?", p.Title, companyID, p.Date).
				Take(&existing).Error
			if err != nil {
				return fmt.Errorf("find duplicate offer: %w", err)
			}
			id = existing.ID
			return nil
		}

		id, inserted = offer.ID, true
		if err := syncSkills(tx, id, p.Skills); err != nil {
			return err
		}
		return syncDegrees(tx, id, p.Degrees)
	})
	if err != nil {
		return 0, false, err
	}
	return id, inserted, nil
}

// FindOffer loads one offer with its dimension rows.
func (r *OfferRepository) FindOffer(ctx context.Context, id int64) (*model.Offer, error) {
	var o model.Offer
	err := preloadOffer(r.db.WithContext(ctx)).First(&o, "offers.id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("offer %d: %w", id, ErrOfferNotFound)
	}
	return &o, err
}

func upsertCompany(tx *gorm.DB, p dto.CompanyPayload) (int64, error) {
	c := model.Company{Name: p.Name, Description: p.Description, Industry: p.Industry}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"description": gorm.Expr("COALESCE(companies.description, EXCLUDED.description)"),
			"industry":    gorm.Expr("COALESCE(companies.industry, EXCLUDED.industry)"),
		}),
	}).Create(&c).Error
	if err != nil {
		return 0, fmt.Errorf("upsert company %q: %w", p.Name, err)
	}
	return c.ID, nil
}

func upsertRegion(tx *gorm.DB, p dto.RegionPayload) (int64, error) {
	reg := model.Region{Code: p.Code, Name: p.Name}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name": gorm.Expr("COALESCE(regions.name, EXCLUDED.name)"),
		}),
	}).Create(&reg).Error
	if err != nil {
		return 0, fmt.Errorf("upsert region %q: %w", p.Code, err)
	}
	return reg.ID, nil
}

func upsertCity(tx *gorm.DB, name string, regionID int64) (int64, error) {
	c := model.City{Name: name, RegionID: regionID}
	err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "region_id"}},
		DoUpdates: clause.Assignments(map[string]any{"name": gorm.Expr("EXCLUDED.name")}),
	}).Create(&c).Error
	if err != nil {
		return 0, fmt.Errorf("upsert city %q: %w", name, err)
	}
	return c.ID, nil
}

func syncSkills(tx *gorm.DB, offerID int64, labels []string) error {
	labels = uniqueLabels(labels)
	if len(labels) == 0 {
		return nil
	}
	skills := make([]model.Skill, len(labels))
	for i, l := range labels {
		skills[i] = model.Skill{Label: l}
	}
	if err := tx.Clauses(labelUpsert()).Create(&skills).Error; err != nil {
		return fmt.Errorf("upsert skills: %w", err)
	}
	joins := make([]model.OfferSkill, len(skills))
	for i, s := range skills {
		joins[i] = model.OfferSkill{OfferID: offerID, SkillID: s.ID}
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&joins).Error; err != nil {
		return fmt.Errorf("link skills: %w", err)
	}
	return nil
}

func syncDegrees(tx *gorm.DB, offerID int64, labels []string) error {
	labels = uniqueLabels(labels)
	if len(labels) == 0 {
		return nil
	}
	degrees := make([]model.Degree, len(labels))
	for i, l := range labels {
		degrees[i] = model.Degree{Label: l}
	}
	if err := tx.Clauses(labelUpsert()).Create(&degrees).Error; err != nil {
		return fmt.Errorf("upsert degrees: %w", err)
	}
	joins := make([]model.OfferDegree, len(degrees))
	for i, d := range degrees {
		joins[i] = model.OfferDegree{OfferID: offerID, DegreeID: d.ID}
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&joins).Error; err != nil {
		return fmt.Errorf("link degrees: %w", err)
	}
	return nil
}

// labelUpsert touches the existing row so RETURNING yields its id.
func labelUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "label"}},
		DoUpdates: clause.Assignments(map[string]any{"label": gorm.Expr("EXCLUDED.label")}),
	}
}

func uniqueLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := labels[:0:0]
	for _, l := range labels {
		if _, ok := seen[l]; ok || l == "" {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func preloadOffer(db *gorm.DB) *gorm.DB {
	return db.Preload("Company").
		Preload("City.Region").
		Preload("Cluster").
		Preload("Skills").
		Preload("Degrees")
}
