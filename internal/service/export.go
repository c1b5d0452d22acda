package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/pageza/nutricalc/backend/config"
)

// Report is a rendered meal for archiving.
type Report struct {
	Title       string    `json:"title"`
	Patient     string    `json:"patient,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Meal        MealView  `json:"meal"`
}

// NewReport renders view as a report
func NewReport(title, patient string, view MealView) *Report {
	return &Report{
		Title:       title,
		Patient:     patient,
		GeneratedAt: time.Now().UTC(),
		Meal:        view,
	}
}

// Marshal encodes the report as indented JSON
func (r *Report) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportService uploads meal reports to S3
type ExportService struct {
	s3Config *config.S3Config
}

// NewExportService creates a new ExportService instance
func NewExportService(s3Config *config.S3Config) *ExportService {
	return &ExportService{s3Config: s3Config}
}

// Upload stores the report under key and returns its URL
func (s *ExportService) Upload(ctx context.Context, key string, report *Report) (string, error) {
	data, err := report.Marshal()
	if err != nil {
		return "", err
	}

	if _, err := s.s3Config.Client.PutObject(ctx, s.s3Config.PutObjectInput(key, data)); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.s3Config.BucketName, key)
	log.Printf("[export] uploaded report %s", url)
	return url, nil
}
