package directory

import (
	"context"
	"testing"

	"letterflow/disposition"
)

type fakeProfiles struct {
	profiles []Profile
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (Profile, error) {
	for _, p := range f.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (f *fakeProfiles) List(ctx context.Context) ([]Profile, error) {
	return f.profiles, nil
}

func strptr(s string) *string { return &s }

func TestForwardCandidatesFiltering(t *testing.T) {
	repo := &fakeProfiles{profiles: []Profile{
		{ID: "self", FullName: "Current User", RoleID: disposition.RoleGeneral, Position: strptr("admin staff")},
		{ID: "deputy", FullName: "Deputy Dean", RoleID: disposition.RoleGeneral, Position: strptr("deputy dean")},
		{ID: "outbound", FullName: "Outgoing Archivist", RoleID: disposition.RoleOutboundArchivist, Position: strptr("archivist")},
		{ID: "no-position", FullName: "Plain Account", RoleID: disposition.RoleGeneral},
		{ID: "blank-position", FullName: "Blank Account", RoleID: disposition.RoleGeneral, Position: strptr("")},
		{ID: "head", FullName: "Program Head", RoleID: disposition.RoleCoordinator, Position: strptr("program head")},
	}}
	svc := NewService(repo)

	got, err := svc.ForwardCandidates(context.Background(), "self")
	if err != nil {
		t.Fatalf("forward candidates: %v", err)
	}

	want := map[string]bool{"deputy": true, "head": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(got), got)
	}
	for _, p := range got {
		if !want[p.ID] {
			t.Fatalf("unexpected candidate %q", p.ID)
		}
	}
}

func TestForwardCandidatesEmptyDirectory(t *testing.T) {
	svc := NewService(&fakeProfiles{})

	got, err := svc.ForwardCandidates(context.Background(), "self")
	if err != nil {
		t.Fatalf("forward candidates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %d", len(got))
	}
}
