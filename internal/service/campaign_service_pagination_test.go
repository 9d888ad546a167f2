package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/unclebandit/pledge-escrow/internal/model"
)

func TestPagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.create(t, 100, nil)
	}
	f.pledge(t, "bob", 1, 100)

	ctx := context.Background()
	pageSize := 2

	page1, pagination1, err := f.svc.ListCampaigns(ctx, 1, pageSize, "", "")
	if err != nil {
		t.Fatal(err)
	}
	page2, _, _ := f.svc.ListCampaigns(ctx, 2, pageSize, "", "")

	expectedTotal := 5
	if pagination1["total_count"] != expectedTotal {
		t.Errorf("expected total_count %d, got %d", expectedTotal, pagination1["total_count"])
	}
	if pagination1["total_pages"] != 3 {
		t.Errorf("expected 3 pages, got %d", pagination1["total_pages"])
	}

	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("expected full pages, got %d and %d", len(page1), len(page2))
	}

	// Check descending order
	if page1[0].ID <= page1[1].ID {
		t.Errorf("expected descending order in page 1")
	}
	if page1[1].ID == page2[0].ID {
		t.Errorf("duplicate entry between pages: %v", page1[1].ID)
	}

	page3, _, _ := f.svc.ListCampaigns(ctx, 3, pageSize, "", "")
	if len(page3) != 1 {
		t.Errorf("expected last page to have 1 item, got %d", len(page3))
	}

	successful, pagination, _ := f.svc.ListCampaigns(ctx, 1, 0, string(model.StateSuccessful), "")
	if len(successful) != 1 || successful[0].ID != 1 {
		t.Errorf("expected only campaign 1 to be successful, got %+v", successful)
	}
	if pagination["page_size"] != 20 {
		t.Errorf("expected default page size 20, got %d", pagination["page_size"])
	}
}

func TestListCampaignsByCreator(t *testing.T) {
	f := newFixture(t)
	f.create(t, 100, nil)
	mine, err := f.svc.CreateCampaign(as("bob"), "bob", 50, t0.Add(time.Hour), nil)
	if err != nil {
		t.Fatal(err)
	}
	f.create(t, 100, nil)

	campaigns, pagination, err := f.svc.ListCampaigns(context.Background(), 1, 10, "", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(campaigns) != 1 || campaigns[0].ID != mine || pagination["total_count"] != 1 {
		t.Errorf("expected only bob's campaign %d, got %+v", mine, campaigns)
	}

	active, _, _ := f.svc.ListCampaigns(context.Background(), 1, 10, string(model.StateActive), "alice")
	if len(active) != 2 {
		t.Errorf("expected 2 active campaigns by alice, got %d", len(active))
	}
}
