package store

import (
	"reflect"
	"testing"
	"time"

	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
)

func TestRecordFromObject(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name   string
		prefix string
		obj    Object
		want   models.FileMetadata
	}{
		{
			name:   "defaults from key",
			prefix: "files",
			obj:    Object{Key: "files/notes.txt", Modified: modified},
			want: models.FileMetadata{
				ID:           "files/notes.txt",
				Title:        "notes.txt",
				ModifiedDate: modified.UTC(),
				MimeType:     "text/plain",
				Parents:      []string{"root"},
			},
		},
		{
			name:   "nested key and unknown extension",
			prefix: "files/",
			obj:    Object{Key: "files/reports/q1.zzz", ContentType: ""},
			want: models.FileMetadata{
				ID:       "files/reports/q1.zzz",
				Title:    "q1.zzz",
				MimeType: "application/octet-stream",
				Parents:  []string{"reports"},
			},
		},
		{
			name: "metadata overrides",
			obj: Object{
				Key:         "a/b/c.bin",
				ContentType: "text/plain",
				Metadata: map[string]string{
					"X-Amz-Meta-Title": "Quarterly",
					"Starred":          "TRUE",
					"sharedwithme":     "1",
					"parents":          "root, team ,",
				},
			},
			want: models.FileMetadata{
				ID:           "a/b/c.bin",
				Title:        "Quarterly",
				MimeType:     "text/plain",
				Starred:      true,
				SharedWithMe: true,
				Parents:      []string{"root", "team"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecordFromObject(tt.prefix, tt.obj)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RecordFromObject() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestListPrefix(t *testing.T) {
	tests := []struct {
		prefix, scope, want string
	}{
		{"", "root", ""},
		{"", "", ""},
		{"files", "root", "files/"},
		{"/files/", "root", "files/"},
		{"files", "team", "files/team/"},
		{"", "team", "team/"},
	}
	for _, tt := range tests {
		if got := ListPrefix(tt.prefix, tt.scope); got != tt.want {
			t.Errorf("ListPrefix(%q, %q) = %q, want %q", tt.prefix, tt.scope, got, tt.want)
		}
	}
}

func TestApply(t *testing.T) {
	records := []models.FileMetadata{
		{ID: "1", Title: "alpha.txt", MimeType: "text/plain", Parents: []string{"root"}},
		{ID: "2", Title: "beta.png", MimeType: "image/png", Parents: []string{"team"}},
		{ID: "3", Title: "gamma.txt", MimeType: "text/plain", Parents: []string{"team"}},
	}
	plain := query.NewBuilder().AddFilters(query.MustEq(query.FieldMimeType, "text/plain")).Build()

	ids := func(recs []models.FileMetadata) []string {
		var out []string
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out
	}

	if got := ids(Apply(records, "root", query.Query{})); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("root scope, empty query = %v", got)
	}
	if got := ids(Apply(records, "", query.Query{})); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("empty scope, empty query = %v", got)
	}
	if got := ids(Apply(records, "root", plain)); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("root scope, plain text = %v", got)
	}
	if got := ids(Apply(records, "team", plain)); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("team scope, plain text = %v", got)
	}
	if got := Apply(records, "nowhere", query.Query{}); len(got) != 0 {
		t.Errorf("unknown scope = %v, want none", ids(got))
	}
}
