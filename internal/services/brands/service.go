package brands

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"brandguard/internal/domain"
	"brandguard/internal/ports"
)

// Input is a brand registration or update payload.
type Input struct {
	Name          string   `json:"name" validate:"required,min=2"`
	PackageIDs    []string `json:"package_ids" validate:"required,min=1,dive,required"`
	IconURLs      []string `json:"icon_urls" validate:"dive,url"`
	DeveloperName string   `json:"developer_name"`
	Certificates  []string `json:"certificates" validate:"dive,hexadecimal"`
}

// Service owns the registry of legitimate brands.
type Service struct {
	repo     ports.BrandRepository
	validate *validator.Validate
}

func New(repo ports.BrandRepository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) Create(ctx context.Context, in Input) (domain.Brand, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.Brand{}, fmt.Errorf("invalid brand: %w", err)
	}
	b := domain.Brand{
		ID:            uuid.NewString(),
		Name:          in.Name,
		PackageIDs:    in.PackageIDs,
		IconURLs:      in.IconURLs,
		DeveloperName: in.DeveloperName,
		Certificates:  in.Certificates,
	}
	if err := s.repo.CreateBrand(ctx, &b); err != nil {
		return domain.Brand{}, err
	}
	return b, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (domain.Brand, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.Brand{}, fmt.Errorf("invalid brand: %w", err)
	}
	b, err := s.repo.GetBrand(ctx, id)
	if err != nil {
		return domain.Brand{}, err
	}
	b.Name = in.Name
	b.PackageIDs = in.PackageIDs
	b.IconURLs = in.IconURLs
	b.DeveloperName = in.DeveloperName
	b.Certificates = in.Certificates
	if err := s.repo.UpdateBrand(ctx, &b); err != nil {
		return domain.Brand{}, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Brand, error) {
	return s.repo.GetBrand(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Brand, error) {
	return s.repo.ListBrands(ctx)
}
