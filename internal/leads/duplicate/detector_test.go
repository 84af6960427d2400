package duplicate

import (
	"context"
	"testing"

	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/settings"

	"github.com/google/uuid"
)

type fakeFinder struct {
	byEmail   []repository.Lead
	byCompany []repository.Lead
	byPhone   []repository.Lead

	emailCalls   int
	companyCalls int
	phoneCalls   int
}

func (f *fakeFinder) FindByEmail(_ context.Context, _ string, _ *uuid.UUID) ([]repository.Lead, error) {
	f.emailCalls++
	return f.byEmail, nil
}

func (f *fakeFinder) FindByCompany(_ context.Context, _ string, _ *uuid.UUID) ([]repository.Lead, error) {
	f.companyCalls++
	return f.byCompany, nil
}

func (f *fakeFinder) FindByPhoneDigits(_ context.Context, _ string, _ *uuid.UUID) ([]repository.Lead, error) {
	f.phoneCalls++
	return f.byPhone, nil
}

func allCriteria() settings.DuplicateDetection {
	return settings.DuplicateDetection{Enabled: true, ByEmail: true, ByCompany: true, ByPhone: true}
}

func TestFind_DisabledReturnsEmpty(t *testing.T) {
	finder := &fakeFinder{byEmail: []repository.Lead{{ID: uuid.New()}}}
	detector := NewDetector(finder)

	matches, err := detector.Find(context.Background(), Candidate{ContactEmail: "a@b.fr"},
		settings.DuplicateDetection{Enabled: false, ByEmail: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches when detection is disabled, got %d", len(matches))
	}
	if finder.emailCalls != 0 {
		t.Fatal("disabled detection must not query the repository")
	}
}

func TestFind_OnlyEnabledCriteriaRun(t *testing.T) {
	match := repository.Lead{ID: uuid.New(), CompanyName: "Acme"}
	finder := &fakeFinder{byEmail: []repository.Lead{match}, byCompany: []repository.Lead{match}}
	detector := NewDetector(finder)

	cfg := allCriteria()
	cfg.ByCompany = false
	cfg.ByPhone = false

	matches, err := detector.Find(context.Background(), Candidate{
		CompanyName:  "Acme",
		ContactEmail: "contact@acme.fr",
		ContactPhone: "+33 1 23 45 67 89",
	}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if finder.companyCalls != 0 || finder.phoneCalls != 0 {
		t.Fatal("disabled criteria must not query the repository")
	}
}

func TestFind_EmptyFieldsSkipTheirCriterion(t *testing.T) {
	finder := &fakeFinder{}
	detector := NewDetector(finder)

	_, err := detector.Find(context.Background(), Candidate{CompanyName: "Acme"}, allCriteria())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finder.emailCalls != 0 {
		t.Fatal("empty email must not trigger the email criterion")
	}
	if finder.phoneCalls != 0 {
		t.Fatal("empty phone must not trigger the phone criterion")
	}
	if finder.companyCalls != 1 {
		t.Fatalf("expected one company lookup, got %d", finder.companyCalls)
	}
}

func TestFind_DeduplicatesAcrossCriteria(t *testing.T) {
	shared := repository.Lead{ID: uuid.New(), CompanyName: "Acme"}
	other := repository.Lead{ID: uuid.New(), CompanyName: "Acme Bis"}
	finder := &fakeFinder{
		byEmail:   []repository.Lead{shared},
		byCompany: []repository.Lead{shared, other},
	}
	detector := NewDetector(finder)

	matches, err := detector.Find(context.Background(), Candidate{
		CompanyName:  "Acme",
		ContactEmail: "contact@acme.fr",
	}, allCriteria())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 distinct matches, got %d", len(matches))
	}
}
