package holdings

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []contracts.Holding
		wantErr error
	}{
		{
			name:  "valid with short",
			input: "yf_ticker,quantity\nAAPL,10\nMSFT,-5\n",
			want:  []contracts.Holding{{Ticker: "AAPL", Quantity: 10}, {Ticker: "MSFT", Quantity: -5}},
		},
		{
			name:  "columns in any order with BOM",
			input: "\ufeffquantity,yf_ticker\n3,VOD.L\n",
			want:  []contracts.Holding{{Ticker: "VOD.L", Quantity: 3}},
		},
		{
			name:  "header only",
			input: "yf_ticker,quantity\n",
			want:  nil,
		},
		{
			name:    "extra column",
			input:   "yf_ticker,quantity,price\nAAPL,10,150\n",
			wantErr: contracts.ErrInvalidHolding,
		},
		{
			name:    "missing column",
			input:   "yf_ticker\nAAPL\n",
			wantErr: contracts.ErrInvalidHolding,
		},
		{
			name:    "fractional quantity",
			input:   "yf_ticker,quantity\nAAPL,1.5\n",
			wantErr: contracts.ErrInvalidHolding,
		},
		{
			name:    "duplicate ticker",
			input:   "yf_ticker,quantity\nAAPL,1\nAAPL,2\n",
			wantErr: contracts.ErrDuplicateTicker,
		},
		{
			name:    "empty file",
			input:   "",
			wantErr: contracts.ErrInvalidHolding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddress(t *testing.T) {
	u, err := ParseAddress("s3://labfolio-portfolios/users/42/main.csv")
	require.NoError(t, err)
	assert.Equal(t, "labfolio-portfolios", u.Host)
	assert.Equal(t, "/users/42/main.csv", u.Path)

	_, err = ParseAddress("s3://bucket-only")
	assert.Error(t, err)
	_, err = ParseAddress("https://example.com/x.csv")
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.csv"), []byte("yf_ticker,quantity\nAAPL,1\n"), 0o600))
	store := NewFileStore(dir)

	body, err := store.Open(context.Background(), mustURL(t, "file://p.csv"))
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Contains(t, string(data), "AAPL")

	_, err = store.Open(context.Background(), mustURL(t, "file://missing.csv"))
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	_, err = store.Open(context.Background(), mustURL(t, "file:///../../etc/passwd"))
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func TestS3Store(t *testing.T) {
	store := &S3Store{client: &fakeS3{objects: map[string]string{
		"bucket/users/1.csv": "yf_ticker,quantity\nNVDA,4\n",
	}}}

	body, err := store.Open(context.Background(), mustURL(t, "s3://bucket/users/1.csv"))
	require.NoError(t, err)
	holdings, err := ParseCSV(body)
	require.NoError(t, err)
	assert.Equal(t, []contracts.Holding{{Ticker: "NVDA", Quantity: 4}}, holdings)

	_, err = store.Open(context.Background(), mustURL(t, "s3://bucket/users/2.csv"))
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	store.bucket = "other"
	_, err = store.Open(context.Background(), mustURL(t, "s3://bucket/users/1.csv"))
	assert.ErrorContains(t, err, "not the configured holdings bucket")
}

type fakeRegistry map[string]string

func (f fakeRegistry) Get(_ context.Context, id string) (*contracts.Portfolio, error) {
	addr, ok := f[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return &contracts.Portfolio{ID: id, Address: addr}, nil
}

func TestSource_GetHoldings(t *testing.T) {
	s3store := &S3Store{client: &fakeS3{objects: map[string]string{
		"bucket/a.csv": "yf_ticker,quantity\nAAA,10\nBBB,-5\n",
		"bucket/b.csv": "ticker,qty\nAAA,1\n",
	}}}
	src := NewSource(fakeRegistry{
		"p1": "s3://bucket/a.csv",
		"p2": "s3://bucket/b.csv",
		"p3": "file://local.csv",
	}, map[string]ObjectStore{"s3": s3store}, logger.Nop())

	holdings, err := src.GetHoldings(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, holdings, 2)

	_, err = src.GetHoldings(context.Background(), "p2")
	assert.ErrorIs(t, err, contracts.ErrInvalidHolding)

	_, err = src.GetHoldings(context.Background(), "p3")
	assert.Error(t, err)

	_, err = src.GetHoldings(context.Background(), "nope")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}
