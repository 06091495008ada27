package disposition

import (
	"errors"
	"testing"
)

func deanCap() Capability {
	return Capability{UserID: "dean-1", RoleID: RoleLeadership, Position: strptr("Dean")}
}

func staffCap(userID, position string) Capability {
	return Capability{UserID: userID, RoleID: RoleGeneral, Position: strptr(position)}
}

func reviewLetter() LetterInfo {
	return LetterInfo{ID: "letter-1", ArchivistID: "archivist-1", NeedsDeanReview: true}
}

func TestDeanOpensEmptyChain(t *testing.T) {
	if err := EvaluateSubmit(deanCap(), nil, reviewLetter()); err != nil {
		t.Fatalf("expected dean to open the chain, got %v", err)
	}
}

func TestNonDeanCannotOpenEmptyChain(t *testing.T) {
	cap := staffCap("user-x", "program head")
	if err := EvaluateSubmit(cap, nil, reviewLetter()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	// Leadership role without the dean position is not the top authority.
	vice := Capability{UserID: "vice-1", RoleID: RoleLeadership, Position: strptr("deputy dean")}
	if err := EvaluateSubmit(vice, nil, reviewLetter()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for non-dean leadership, got %v", err)
	}
}

func TestDeanCannotOpenWithoutReviewFlag(t *testing.T) {
	letter := reviewLetter()
	letter.NeedsDeanReview = false
	if err := EvaluateSubmit(deanCap(), nil, letter); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCurrentRecipientMayContinue(t *testing.T) {
	chain := makeChain(StatusToDeputyDean)
	actor := CurrentActor(chain)

	cap := staffCap(actor, "deputy dean")
	if err := EvaluateSubmit(cap, chain, reviewLetter()); err != nil {
		t.Fatalf("expected current recipient to be allowed, got %v", err)
	}
}

func TestOtherUserDenied(t *testing.T) {
	chain := makeChain(StatusToDeputyDean)

	cap := staffCap("somebody-else", "program head")
	if err := EvaluateSubmit(cap, chain, reviewLetter()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestMissingPositionDistinctFromDenied(t *testing.T) {
	chain := makeChain(StatusToDeputyDean)
	actor := CurrentActor(chain)

	// The current actor without a position gets the corrective error, not a
	// generic denial.
	cap := Capability{UserID: actor, RoleID: RoleGeneral}
	err := EvaluateSubmit(cap, chain, reviewLetter())
	if !errors.Is(err, ErrMissingPosition) {
		t.Fatalf("expected ErrMissingPosition, got %v", err)
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Fatal("ErrMissingPosition must not be ErrPermissionDenied")
	}

	empty := Capability{UserID: actor, RoleID: RoleGeneral, Position: strptr("  ")}
	if err := EvaluateSubmit(empty, chain, reviewLetter()); !errors.Is(err, ErrMissingPosition) {
		t.Fatalf("expected ErrMissingPosition for blank position, got %v", err)
	}
}

func TestTerminalChainDeniesEveryone(t *testing.T) {
	chain := makeChain(StatusToDeputyDean, StatusCompleted)

	for _, cap := range []Capability{deanCap(), staffCap("user-x", "program head")} {
		if err := EvaluateSubmit(cap, chain, reviewLetter()); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("capability %q: expected ErrPermissionDenied, got %v", cap.UserID, err)
		}
	}
}

func TestNoDoubleAction(t *testing.T) {
	chain := makeChain(StatusToDeputyDean, StatusToProgramHead)
	// Route the chain back to a previous submitter.
	earlier := chain[0].SubmitterID
	chain[1].RecipientID = strptr(earlier)

	cap := staffCap(earlier, "admin staff")
	if err := EvaluateSubmit(cap, chain, reviewLetter()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for repeat actor, got %v", err)
	}
}

func TestSingleActiveActor(t *testing.T) {
	chain := makeChain(StatusToDeputyDean, StatusAwaitingResponse)
	actor := CurrentActor(chain)

	allowed := 0
	for _, userID := range []string{actor, "user-a", "user-b", chain[0].SubmitterID} {
		cap := staffCap(userID, "some position")
		if EvaluateSubmit(cap, chain, reviewLetter()) == nil {
			allowed++
			if userID != actor {
				t.Fatalf("unexpected user %q authorized", userID)
			}
		}
	}
	if allowed != 1 {
		t.Fatalf("expected exactly one authorized user, got %d", allowed)
	}
}

func TestDeanExcludedFromPendingList(t *testing.T) {
	if CanListPending(deanCap()) {
		t.Fatal("dean must not access the pending list")
	}
	if !CanListPending(staffCap("user-x", "program head")) {
		t.Fatal("regular staff should access the pending list")
	}
	vice := Capability{UserID: "vice-1", RoleID: RoleLeadership, Position: strptr("deputy dean")}
	if !CanListPending(vice) {
		t.Fatal("non-dean leadership should access the pending list")
	}
}

func TestCanViewAllowedRoles(t *testing.T) {
	for _, role := range []int{RoleCoordinator, RoleLeadership, RoleInboundArchivist, RoleOutboundArchivist, RoleGeneral} {
		if !CanView(role) {
			t.Fatalf("role %d should have view access", role)
		}
	}
	if CanView(0) || CanView(99) {
		t.Fatal("unknown roles must not view")
	}
}
