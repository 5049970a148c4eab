package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	objects map[string][]byte
	calls   int
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://datos/2024/ventas.xlsx", "datos", "2024/ventas.xlsx", false},
		{"S3://datos/ventas.csv", "datos", "ventas.csv", false},
		{"s3://datos", "", "", true},
		{"s3:///ventas.csv", "", "", true},
		{"/tmp/ventas.csv", "", "", true},
	}

	for _, tt := range tests {
		bucket, key, err := ParseS3Path(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseS3Path(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("ParseS3Path(%q) = %q, %q, want %q, %q", tt.in, bucket, key, tt.bucket, tt.key)
		}
	}
}

func TestS3_ReadSheet(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"datos/in/ventas.csv": []byte("Cliente,Monto\nAna,10\n"),
	}}
	r := NewRegistry(Options{})
	r.UseS3(NewS3FetcherWithClient(fake))

	tb, err := r.ReadSheet(context.Background(), "s3://datos/in/ventas.csv", "ventas", 0)
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if tb.Len() != 1 || tb.Value(0, "Cliente") != "Ana" {
		t.Errorf("table = %v", tb.Rows)
	}
	if fake.calls != 1 {
		t.Errorf("GetObject calls = %d, want 1", fake.calls)
	}
}

func TestS3_Errors(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"datos/big.csv": bytes.Repeat([]byte("x"), 100),
	}}
	f := NewS3FetcherWithClient(fake)
	ctx := context.Background()

	if _, err := f.Fetch(ctx, "s3://datos/big.csv", 10); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversized object: err = %v, want ErrFileTooLarge", err)
	}
	if _, err := f.Fetch(ctx, "s3://datos/missing.csv", 0); err == nil {
		t.Error("missing object: expected error")
	}
}
