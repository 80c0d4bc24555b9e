package portal

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classportal/internal/apperr"
	"classportal/internal/listview"
	"classportal/internal/live"
	"classportal/internal/queue"
	"classportal/internal/storage"
	"classportal/internal/store/storetest"
)

type fakeFiles map[string]string

func (f fakeFiles) Attach(_ context.Context, _ string, refs ...string) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		url, ok := f[ref]
		if !ok {
			return nil, apperr.Invalid(storage.UnresolvedMessage)
		}
		out = append(out, url)
	}
	return out, nil
}

func (f fakeFiles) Detach(context.Context, string, ...string) error { return nil }

type fixture struct {
	svc    *Service
	broker *live.Memory
	jobs   *queue.InMemory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := storetest.NewDB(t)
	broker := live.NewMemory()
	jobs := queue.NewInMemory(16)
	files := fakeFiles{
		"ref-1": "https://cdn.test/uploads/ref-1",
		"ref-2": "https://cdn.test/uploads/ref-2",
	}
	return fixture{svc: NewService(NewRepository(db.Client), files, broker, jobs), broker: broker, jobs: jobs}
}

func validationField(t *testing.T, err error, field string) string {
	t.Helper()
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Fields[field]
}

func TestCreateNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	notes, cancel := f.broker.Subscribe(ctx, string(Notes))
	defer cancel()

	_, err := f.svc.CreateNote(ctx, "u1", NoteInput{Title: "Week 1", CourseCode: "CSC101"})
	require.Error(t, err)
	assert.Equal(t, NoImagesMessage, apperr.Message(err))

	_, err = f.svc.CreateNote(ctx, "u1", NoteInput{Title: "Week 1", CourseCode: "CSC101", Files: []string{"ref-1", "gone"}})
	assert.Equal(t, storage.UnresolvedMessage, apperr.Message(err))

	_, err = f.svc.CreateNote(ctx, "u1", NoteInput{Title: "A title that is far too long", CourseCode: "CSC101", Files: []string{"ref-1"}})
	assert.NotEmpty(t, validationField(t, err, "title"))

	n, err := f.svc.CreateNote(ctx, "u1", NoteInput{Title: " Week 1 ", CourseCode: "CSC101", Files: []string{"ref-1", "ref-2"}})
	require.NoError(t, err)
	assert.Equal(t, "Week 1", n.Title)
	assert.Equal(t, []string{"https://cdn.test/uploads/ref-1", "https://cdn.test/uploads/ref-2"}, []string(n.ImageURLs))

	select {
	case <-notes:
	default:
		t.Fatal("notes topic not notified")
	}

	list, err := f.svc.Repo().ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)
	assert.Equal(t, n.ImageURLs, list[0].ImageURLs)
}

func TestCreateAnnouncementKeepsOnlyKindFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.svc.CreateAnnouncement(ctx, "u1", AnnouncementInput{
		Kind:        string(ClassUpdate),
		Description: "Lecture moved",
		CourseCode:  "CSC201",
		Venue:       "LT1",
		Attachment:  "ref-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Class Update", *a.Title)
	assert.Equal(t, "LT1", *a.Venue)
	assert.Equal(t, "CSC201", *a.CourseCode)
	assert.Nil(t, a.Attachment)

	a, err = f.svc.CreateAnnouncement(ctx, "u1", AnnouncementInput{
		Kind:        string(ManualUpdate),
		Description: "New manual",
		CourseCode:  "CSC201",
		Venue:       "ignored",
		Attachment:  "ref-2",
	})
	require.NoError(t, err)
	assert.Nil(t, a.Venue)
	assert.Equal(t, "https://cdn.test/uploads/ref-2", *a.Attachment)

	a, err = f.svc.CreateAnnouncement(ctx, "u1", AnnouncementInput{Kind: string(SchoolAnnouncement), Description: "Holiday"})
	require.NoError(t, err)
	assert.Nil(t, a.CourseCode)

	_, err = f.svc.CreateAnnouncement(ctx, "u1", AnnouncementInput{Kind: "Gossip", Description: "x"})
	assert.NotEmpty(t, validationField(t, err, "kind"))

	_, err = f.svc.CreateAnnouncement(ctx, "u1", AnnouncementInput{Kind: string(AppManagement), Description: "  "})
	assert.Equal(t, "description must not be blank", validationField(t, err, "description"))

	list, err := f.svc.Repo().ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestCreateAssignmentCourseAndShopValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateAssignment(ctx, AssignmentInput{CourseCode: "CSC201", Questions: []string{"Define a pointer", " "}})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.Status(err))

	a, err := f.svc.CreateAssignment(ctx, AssignmentInput{Title: "Pointers", CourseCode: "CSC201", Questions: []string{"Define a pointer", "Explain aliasing"}})
	require.NoError(t, err)
	assert.Len(t, a.Questions, 2)

	_, err = f.svc.CreateCourse(ctx, CourseInput{CourseCode: "CSC201", Unit: 0})
	assert.NotEmpty(t, validationField(t, err, "unit"))
	_, err = f.svc.CreateCourse(ctx, CourseInput{CourseCode: "ABCDEFGHIJKLMNOPQRSTU", Unit: 3})
	assert.NotEmpty(t, validationField(t, err, "course"))
	for _, c := range []CourseInput{{CourseCode: "CSC201", Unit: 3}, {CourseCode: "MTH101", Unit: 2}} {
		_, err = f.svc.CreateCourse(ctx, c)
		require.NoError(t, err)
	}
	courses, err := f.svc.Repo().ListCourses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, TotalUnits(courses))

	_, err = f.svc.CreateShopItem(ctx, ShopInput{Course: "CSC201", Name: "Manual", Price: 1500, URL: "not a url", Deadline: "01/02/2025"})
	assert.NotEmpty(t, validationField(t, err, "url"))
	_, err = f.svc.CreateShopItem(ctx, ShopInput{Course: "CSC201", Name: "Manual", Price: 1500, URL: "https://pay.example/m", Deadline: "2025-02-01"})
	assert.NotEmpty(t, validationField(t, err, "deadline"))

	_, err = f.svc.CreateShopItem(ctx, ShopInput{Course: "CSC201", Name: "Manual", Price: 1500, URL: "https://pay.example/m", Deadline: "28/02/2025"})
	require.NoError(t, err)
	_, err = f.svc.CreateShopItem(ctx, ShopInput{Course: "MTH101", Name: "Tables", Price: 500, URL: "https://pay.example/t", Deadline: "28/02/2025"})
	require.NoError(t, err)

	all, err := f.svc.Repo().ListShopItems(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	csc, err := f.svc.Repo().ListShopItems(ctx, "CSC201")
	require.NoError(t, err)
	require.Len(t, csc, 1)
	assert.Equal(t, "Manual", csc[0].Name)
}

func TestDeleteIsIdempotentAndReleasesAttachments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.svc.CreateNote(ctx, "u1", NoteInput{Title: "Week 2", CourseCode: "CSC101", Files: []string{"ref-1", "ref-2"}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, Notes, n.ID))
	assert.Equal(t, 2, f.jobs.Len())

	require.NoError(t, f.svc.Delete(ctx, Notes, n.ID), "second delete is a no-op")
	assert.Equal(t, 2, f.jobs.Len())

	list, err := f.svc.Repo().ListNotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = f.svc.Delete(ctx, Resource("grades"), "x")
	assert.Equal(t, http.StatusNotFound, apperr.Status(err))
}

func TestListsAreNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		f.svc.now = func() time.Time { return at }
		_, err := f.svc.CreateAssignment(ctx, AssignmentInput{CourseCode: "CSC201", Questions: []string{"Question number one"}})
		require.NoError(t, err)
	}
	list, err := f.svc.Repo().ListAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.True(t, list[1].CreatedAt.After(list[2].CreatedAt))
}

func TestDescriptors(t *testing.T) {
	course := "CSC201"
	title := string(ClassUpdate)
	a := Announcement{Title: &title, CourseCode: &course}
	d := AnnouncementDescriptor(5)
	assert.True(t, listview.Matches(d, a, listview.Criteria{Text: "class", Category: "CSC201"}))
	assert.False(t, listview.Matches(d, Announcement{}, listview.Criteria{Text: "class"}))

	all := "ALL"
	assert.True(t, listview.Matches(d, Announcement{Title: &title, CourseCode: &all}, listview.Criteria{Category: "MTH101"}))

	asg := Assignment{Questions: []string{"What is a monad?", "Define recursion"}}
	assert.True(t, listview.Matches(AssignmentDescriptor(5), asg, listview.Criteria{Text: "RECURSION"}))

	assert.True(t, listview.Matches(CourseDescriptor(5), Course{CourseCode: "CSC201"}, listview.Criteria{Date: "2001-01-01"}),
		"courses have no date facet")
}

func uploadRef(t *testing.T, files *storage.Service, owner string) string {
	t.Helper()
	ctx := context.Background()
	target, err := files.GenerateUploadURL(ctx, owner)
	require.NoError(t, err)
	token := target.UploadURL[strings.Index(target.UploadURL, storage.ObjectsPath)+len(storage.ObjectsPath):]
	ref, err := files.Accept(ctx, token, strings.NewReader("page"), "text/plain")
	require.NoError(t, err)
	return ref
}

func TestFailedInsertLeavesUploadsToSweep(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewDB(t)
	mem := storage.NewMemory("https://cdn.test")
	files := storage.NewService(storage.NewRepository(db.Client), mem, storage.Options{SigningKey: "k", Issuer: "test"})
	svc := NewService(NewRepository(db.Client), files, live.NewMemory(), queue.NewInMemory(4))

	page := uploadRef(t, files, "u1")
	attachment := uploadRef(t, files, "u1")
	db.Client.MustExec(`DROP TABLE notes`)
	db.Client.MustExec(`DROP TABLE announcements`)

	_, err := svc.CreateNote(ctx, "u1", NoteInput{Title: "Week 1", CourseCode: "CSC101", Files: []string{page}})
	require.Error(t, err)
	_, err = svc.CreateAnnouncement(ctx, "u1", AnnouncementInput{
		Kind:        string(ManualUpdate),
		Description: "v2 is out",
		CourseCode:  "CSC101",
		Attachment:  attachment,
	})
	require.Error(t, err)

	n, err := files.SweepOrphans(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "neither upload stays claimed")
	assert.Zero(t, mem.Len())
}
