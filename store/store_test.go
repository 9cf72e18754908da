package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"taskmanager/access"
	"taskmanager/database"
	"taskmanager/models"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	db, err := database.Open("sqlite::memory:", "silent", zap.NewNop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return New(db), func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func mustUser(t *testing.T, s *Store, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func mustProject(t *testing.T, s *Store, title string, owner *models.User, members ...*models.User) *models.Project {
	t.Helper()
	ids := make([]uint, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	p := &models.Project{Title: title, OwnerID: owner.ID}
	if err := s.CreateProject(context.Background(), p, ids); err != nil {
		t.Fatalf("create project %s: %v", title, err)
	}
	return p
}

func mustTask(t *testing.T, s *Store, title string, p *models.Project, creator *models.User) *models.Task {
	t.Helper()
	task := &models.Task{Title: title, ProjectID: p.ID, CreatedByID: &creator.ID}
	if err := s.CreateTask(context.Background(), task, TaskLinks{}); err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func TestVisibleProjectsOwnedOrMember(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	carol := mustUser(t, s, "carol")

	roadmap := mustProject(t, s, "Roadmap", alice, bob)
	private := mustProject(t, s, "Private", carol)
	// Owner listed as a member too must not produce duplicate rows.
	shared := mustProject(t, s, "Shared", bob, alice, bob)

	cases := []struct {
		user *models.User
		want []uint
	}{
		{alice, []uint{roadmap.ID, shared.ID}},
		{bob, []uint{roadmap.ID, shared.ID}},
		{carol, []uint{private.ID}},
	}
	for _, c := range cases {
		got, err := s.ListVisibleProjects(ctx, access.As(c.user.ID), ProjectQuery{Ordering: "title"})
		if err != nil {
			t.Fatalf("list for %s: %v", c.user.Username, err)
		}
		if len(got) != len(c.want) {
			t.Fatalf("%s: expected %d projects, got %d", c.user.Username, len(c.want), len(got))
		}
		for i, id := range c.want {
			if got[i].ID != id {
				t.Fatalf("%s: expected project %d at %d, got %d", c.user.Username, id, i, got[i].ID)
			}
		}
	}

	anon, err := s.ListVisibleProjects(ctx, access.Identity{}, ProjectQuery{})
	if err != nil {
		t.Fatalf("list anonymous: %v", err)
	}
	if len(anon) != 0 {
		t.Fatalf("expected anonymous identity to see nothing, got %d", len(anon))
	}
}

func TestListVisibleProjectsSearch(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()

	alice := mustUser(t, s, "alice")
	mustProject(t, s, "Roadmap", alice)
	mustProject(t, s, "Website", alice)

	got, err := s.ListVisibleProjects(context.Background(), access.As(alice.ID), ProjectQuery{Search: "road"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Roadmap" {
		t.Fatalf("expected only Roadmap, got %+v", got)
	}
}

func TestCreateProjectRejectsUnknownMember(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()

	alice := mustUser(t, s, "alice")
	p := &models.Project{Title: "Roadmap", OwnerID: alice.ID}
	err := s.CreateProject(context.Background(), p, []uint{999})
	if !errors.Is(err, access.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var count int64
	s.DB().Model(&models.Project{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no project after rejected create, got %d", count)
	}
}

func TestTaskDefaultsAndLinks(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	p := mustProject(t, s, "Roadmap", alice, bob)

	tag := &models.Tag{Name: "backend", Color: models.DefaultTagColor}
	if err := s.CreateTag(ctx, tag); err != nil {
		t.Fatalf("create tag: %v", err)
	}

	assignees := []uint{bob.ID, bob.ID, alice.ID}
	tags := []uint{tag.ID}
	task := &models.Task{Title: "Ship it", ProjectID: p.ID, CreatedByID: &alice.ID}
	if err := s.CreateTask(ctx, task, TaskLinks{AssigneeIDs: &assignees, TagIDs: &tags}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != models.StatusTodo {
		t.Fatalf("expected status todo, got %q", task.Status)
	}
	if task.Priority != models.PriorityMedium {
		t.Fatalf("expected priority medium, got %q", task.Priority)
	}
	if len(task.Assignees) != 2 {
		t.Fatalf("expected 2 distinct assignees, got %d", len(task.Assignees))
	}
	if len(task.Tags) != 1 || task.Tags[0].Name != "backend" {
		t.Fatalf("expected backend tag, got %+v", task.Tags)
	}
	if task.Project.Title != "Roadmap" || len(task.Project.Members) != 1 {
		t.Fatalf("expected project with members preloaded, got %+v", task.Project)
	}

	missing := []uint{999}
	err := s.UpdateTask(ctx, task, TaskLinks{TagIDs: &missing})
	var e *access.Error
	if !errors.As(err, &e) || e.Fields["tags"] == "" {
		t.Fatalf("expected validation error on tags, got %v", err)
	}
}

func TestListTasksExcludesInvisibleProjects(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	carol := mustUser(t, s, "carol")

	roadmap := mustProject(t, s, "Roadmap", alice, bob)
	private := mustProject(t, s, "Private", carol)
	visible := mustTask(t, s, "Plan Q3", roadmap, alice)
	mustTask(t, s, "Secret", private, carol)

	got, err := s.ListTasks(ctx, access.As(bob.ID), models.TaskFilter{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != visible.ID {
		t.Fatalf("expected only %d, got %+v", visible.ID, got)
	}

	// Filtering by an invisible project must not leak its tasks.
	got, err = s.ListTasks(ctx, access.As(bob.ID), models.TaskFilter{ProjectID: private.ID})
	if err != nil {
		t.Fatalf("list tasks by project: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no tasks from invisible project, got %d", len(got))
	}
}

func TestListTasksFilters(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	p := mustProject(t, s, "Roadmap", alice, bob)

	assigned := []uint{bob.ID}
	urgent := &models.Task{Title: "Fix login", ProjectID: p.ID, Priority: models.PriorityUrgent, Status: models.StatusInProgress}
	if err := s.CreateTask(ctx, urgent, TaskLinks{AssigneeIDs: &assigned}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	mustTask(t, s, "Write docs", p, alice)

	cases := []struct {
		name   string
		filter models.TaskFilter
		want   int
	}{
		{"no filter", models.TaskFilter{}, 2},
		{"status", models.TaskFilter{Status: models.StatusInProgress}, 1},
		{"priority", models.TaskFilter{Priority: models.PriorityUrgent}, 1},
		{"assignee", models.TaskFilter{AssigneeID: bob.ID}, 1},
		{"search", models.TaskFilter{Search: "DOCS"}, 1},
		{"project", models.TaskFilter{ProjectID: p.ID}, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := s.ListTasks(ctx, access.As(alice.ID), c.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != c.want {
				t.Fatalf("expected %d tasks, got %d", c.want, len(got))
			}
		})
	}
}

func TestMembershipChangesAreIdempotent(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	p := mustProject(t, s, "Roadmap", alice)

	for i := 0; i < 2; i++ {
		if _, err := s.AddMember(ctx, p.ID, bob.ID); err != nil {
			t.Fatalf("add member (%d): %v", i, err)
		}
	}
	acl, err := s.ProjectACL(ctx, p.ID)
	if err != nil {
		t.Fatalf("acl: %v", err)
	}
	if len(acl.MemberIDs) != 1 || acl.MemberIDs[0] != bob.ID {
		t.Fatalf("expected bob as single member, got %v", acl.MemberIDs)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.RemoveMember(ctx, p.ID, bob.ID); err != nil {
			t.Fatalf("remove member (%d): %v", i, err)
		}
	}
	acl, err = s.ProjectACL(ctx, p.ID)
	if err != nil {
		t.Fatalf("acl: %v", err)
	}
	if len(acl.MemberIDs) != 0 {
		t.Fatalf("expected no members, got %v", acl.MemberIDs)
	}

	if _, err := s.AddMember(ctx, p.ID, 999); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
	if _, err := s.AddMember(ctx, 999, bob.ID); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected not found for unknown project, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	p := mustProject(t, s, "Roadmap", alice, bob)
	task := mustTask(t, s, "Plan Q3", p, alice)

	if err := s.CreateComment(ctx, &models.Comment{TaskID: task.ID, AuthorID: &bob.ID, Content: "On it"}); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	a := &models.TaskAttachment{TaskID: task.ID, File: "task_attachments/abc/plan.pdf", Size: 3, UploadedByID: &bob.ID}
	if err := s.CreateAttachment(ctx, a); err != nil {
		t.Fatalf("create attachment: %v", err)
	}

	keys, err := s.DeleteProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if len(keys) != 1 || keys[0] != a.File {
		t.Fatalf("expected blob key %q, got %v", a.File, keys)
	}

	for _, m := range []any{&models.Task{}, &models.Comment{}, &models.TaskAttachment{}, &models.ProjectMember{}, &models.Project{}} {
		var count int64
		if err := s.DB().Model(m).Count(&count).Error; err != nil {
			t.Fatalf("count %T: %v", m, err)
		}
		if count != 0 {
			t.Fatalf("expected %T rows to be gone, got %d", m, count)
		}
	}
	if _, err := s.UserByID(ctx, bob.ID); err != nil {
		t.Fatalf("members must survive project deletion: %v", err)
	}
}

func TestDeleteUserNullsAttribution(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	kept := mustProject(t, s, "Roadmap", alice, bob)
	owned := mustProject(t, s, "Bob's", bob)
	mustTask(t, s, "Doomed", owned, bob)

	assigned := []uint{bob.ID}
	task := &models.Task{Title: "Plan Q3", ProjectID: kept.ID, CreatedByID: &bob.ID}
	if err := s.CreateTask(ctx, task, TaskLinks{AssigneeIDs: &assigned}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	c := &models.Comment{TaskID: task.ID, AuthorID: &bob.ID, Content: "Mine"}
	if err := s.CreateComment(ctx, c); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if _, err := s.DeleteUser(ctx, bob.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	reloaded, err := s.TaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("task must survive: %v", err)
	}
	if reloaded.CreatedByID != nil {
		t.Fatalf("expected created_by to be nulled, got %v", *reloaded.CreatedByID)
	}
	if len(reloaded.Assignees) != 0 {
		t.Fatalf("expected assignee rows to be removed")
	}
	if len(reloaded.Project.Members) != 0 {
		t.Fatalf("expected membership to be removed")
	}

	comment, err := s.CommentByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("comment must survive: %v", err)
	}
	if comment.AuthorID != nil {
		t.Fatalf("expected author to be nulled")
	}

	if _, err := s.ProjectByID(ctx, owned.ID); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected owned project to be deleted, got %v", err)
	}
}

func TestUserUniqueness(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()

	mustUser(t, s, "alice")
	dup := &models.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "x"}
	err := s.CreateUser(context.Background(), dup)
	var e *access.Error
	if !errors.As(err, &e) || e.Fields["email"] == "" {
		t.Fatalf("expected email validation error, got %v", err)
	}
}

func TestTagsSeededAndUnique(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	tags, err := s.ListTags(ctx, "", "")
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected 3 default tags, got %d", len(tags))
	}

	err = s.CreateTag(ctx, &models.Tag{Name: "bug", Color: models.DefaultTagColor})
	if !errors.Is(err, access.ErrValidation) {
		t.Fatalf("expected duplicate tag to be rejected, got %v", err)
	}

	second := tags[1]
	second.Name = tags[0].Name
	if err := s.UpdateTag(ctx, &second); !errors.Is(err, access.ErrValidation) {
		t.Fatalf("expected rename onto existing name to be rejected, got %v", err)
	}
}

func TestOrderBy(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "tasks.created_at DESC"},
		{"-due_date", "tasks.due_date DESC"},
		{"priority, -created_at", "tasks.priority, tasks.created_at DESC"},
		{"password_hash", "tasks.created_at DESC"},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%q", c.in), func(t *testing.T) {
			if got := orderBy(c.in, taskOrdering, "tasks.created_at DESC"); got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}
