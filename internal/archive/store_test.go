package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey: key does not exist")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func TestArchiveConversation_WritesRecordAndManifest(t *testing.T) {
	client := newFakeS3()
	store := NewStore(client, "consig-archive", logging.Default())

	archivedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	record := &ConversationRecord{
		Version:      "1.0",
		LeadID:       "lead-1",
		ArchivedAt:   archivedAt,
		MessageCount: 4,
		Status:       "closed",
		Outcome:      "signed",
	}
	if err := store.ArchiveConversation(context.Background(), record); err != nil {
		t.Fatalf("ArchiveConversation: %v", err)
	}

	key := "conversations/v1/by-date/2026/03/10/lead-1.json"
	data, ok := client.objects[key]
	if !ok {
		t.Fatalf("record not written, have keys %v", keysOf(client.objects))
	}
	var stored ConversationRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("unmarshal stored record: %v", err)
	}
	if stored.Outcome != "signed" {
		t.Errorf("unexpected stored outcome: %q", stored.Outcome)
	}

	var manifestFound bool
	for k, v := range client.objects {
		if strings.HasPrefix(k, "conversations/v1/manifests/") {
			manifestFound = true
			if !strings.Contains(string(v), `"lead_id":"lead-1"`) {
				t.Errorf("manifest missing entry: %s", v)
			}
		}
	}
	if !manifestFound {
		t.Error("manifest not written")
	}
}

func TestAppendManifest_AppendsLines(t *testing.T) {
	client := newFakeS3()
	store := NewStore(client, "consig-archive", logging.Default())

	for _, id := range []string{"lead-1", "lead-2"} {
		if err := store.AppendManifest(context.Background(), ManifestEntry{LeadID: id}); err != nil {
			t.Fatalf("AppendManifest(%s): %v", id, err)
		}
	}

	for k, v := range client.objects {
		if strings.HasPrefix(k, "conversations/v1/manifests/") {
			lines := strings.Split(strings.TrimSpace(string(v)), "\n")
			if len(lines) != 2 {
				t.Fatalf("expected 2 manifest lines, got %d: %s", len(lines), v)
			}
			return
		}
	}
	t.Fatal("manifest not written")
}

func TestStore_DisabledIsNoop(t *testing.T) {
	store := NewStore(nil, "", logging.Default())
	if store.Enabled() {
		t.Fatal("store without bucket must be disabled")
	}
	if err := store.ArchiveConversation(context.Background(), &ConversationRecord{LeadID: "x"}); err != nil {
		t.Fatalf("disabled store must be a no-op, got %v", err)
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
