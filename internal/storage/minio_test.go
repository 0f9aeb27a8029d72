package storage

import "testing"

func TestParseRef(t *testing.T) {
	s := &ObjectStore{bucket: "genie-uploads"}

	tests := []struct {
		name    string
		ref     string
		wantKey string
		wantErr bool
	}{
		{"valid", "minio://genie-uploads/abc/notes.txt", "abc/notes.txt", false},
		{"wrong scheme", "s3://genie-uploads/abc", "", true},
		{"data URI", "data:text/plain;base64,aGk=", "", true},
		{"wrong bucket", "minio://other-bucket/abc", "", true},
		{"missing key", "minio://genie-uploads", "", true},
		{"empty key", "minio://genie-uploads/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := s.parseRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
		})
	}
}
