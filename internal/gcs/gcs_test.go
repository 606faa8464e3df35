package gcs

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "simple object",
			uri:        "gs://statements/file.pdf",
			wantBucket: "statements",
			wantObject: "file.pdf",
		},
		{
			name:       "nested path",
			uri:        "gs://statements/2024/01/file.pdf",
			wantBucket: "statements",
			wantObject: "2024/01/file.pdf",
		},
		{
			name:    "missing scheme",
			uri:     "statements/file.pdf",
			wantErr: true,
		},
		{
			name:    "bucket only",
			uri:     "gs://statements",
			wantErr: true,
		},
		{
			name:    "empty object path",
			uri:     "gs://statements/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := parseURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseURI(%q) expected error, got %q/%q", tt.uri, bucket, object)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseURI(%q) failed: %v", tt.uri, err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("parseURI(%q) = %q/%q, want %q/%q", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	s := NewService()

	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/file.pdf", "file.pdf"},
		{"gs://bucket/file.csv", "file.csv"},
		{"gs://bucket", "bucket"},
	}

	for _, tt := range tests {
		if got := s.ExtractFilenameFromGCSURI(tt.uri); got != tt.want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
