package appErrors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("pledge: %w", appErrors.New(appErrors.CampaignEnded, 4))

	kind, ok := appErrors.KindOf(err)
	if !ok || kind != appErrors.CampaignEnded {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}
	if !errors.Is(err, appErrors.New(appErrors.CampaignEnded, 0)) {
		t.Errorf("errors.Is should match on kind")
	}
	if errors.Is(err, appErrors.New(appErrors.CampaignNotFound, 4)) {
		t.Errorf("errors.Is matched the wrong kind")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := appErrors.Newf(appErrors.InsufficientBalance, 0, "alice is short")
	err := appErrors.Wrap(appErrors.PerkTransferFailed, 2, cause)

	if !appErrors.IsKind(err, appErrors.PerkTransferFailed) {
		t.Errorf("expected outer kind PerkTransferFailed")
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not reachable through Unwrap")
	}
	msg := err.Error()
	if !strings.Contains(msg, "campaign 2") || !strings.Contains(msg, "alice is short") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestKindCodes(t *testing.T) {
	if appErrors.InvalidGoalAmount != 1 || appErrors.PerkTransferFailed != 10 {
		t.Errorf("contract error codes changed")
	}
	if appErrors.Kind(99).String() != "Kind(99)" {
		t.Errorf("unexpected name for unknown kind")
	}
	if _, ok := appErrors.KindOf(errors.New("plain")); ok {
		t.Errorf("plain error should carry no kind")
	}
}
