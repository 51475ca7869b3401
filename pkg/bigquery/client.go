package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery order events table is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client is bound to the dataset that holds the order events table.
type Client struct {
	bq             *bigquery.Client
	dataset        *bigquery.Dataset
	project        string
	table          string
	maxBytesBilled int64
}

type target struct {
	project, dataset, table string
}

func targetFrom(gcp config.GCPConfig, cfg config.BigQueryConfig) (target, error) {
	t := target{
		project: strings.TrimSpace(gcp.ProjectID),
		dataset: strings.TrimSpace(cfg.Dataset),
		table:   strings.TrimSpace(cfg.OrderEventsTable),
	}
	var err error
	if t.project == "" {
		err = multierr.Append(err, errProjectIDRequired)
	}
	if t.dataset == "" {
		err = multierr.Append(err, errDatasetRequired)
	}
	if t.table == "" {
		err = multierr.Append(err, errTableNameRequired)
	}
	return t, err
}

// NewClient dials BigQuery and refuses to start unless the dataset and the
// order events table already exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	t, err := targetFrom(gcp, cfg)
	if err != nil {
		return nil, err
	}
	bq, err := bigquery.NewClient(ctx, t.project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		bq:             bq,
		dataset:        bq.Dataset(t.dataset),
		project:        t.project,
		table:          t.table,
		maxBytesBilled: cfg.MaxBytesBilled,
	}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"table": c.TableRef()}), "bigquery client initialized")
	}
	return c, nil
}

// clientOptions prefers inline JSON credentials, then a credentials file,
// then application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping checks that the dataset and table metadata can be read.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	_, err := c.dataset.Metadata(ctx)
	if err := describe("dataset", c.dataset.DatasetID, err); err != nil {
		return err
	}
	_, err = c.dataset.Table(c.table).Metadata(ctx)
	return describe("table", c.table, err)
}

func describe(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// TableRef returns the backtick-quoted project.dataset.table reference.
func (c *Client) TableRef() string {
	if c == nil || c.dataset == nil {
		return ""
	}
	return quotedTableRef(c.project, c.dataset.DatasetID, c.table)
}

func quotedTableRef(project, dataset, table string) string {
	return "`" + project + "." + dataset + "." + table + "`"
}

// InsertRows streams rows into the order events table. Rows implementing
// bigquery.ValueSaver control their own insert ids.
func (c *Client) InsertRows(ctx context.Context, rows []any) error {
	if c == nil || c.bq == nil {
		return errClientNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(c.table).Inserter().Put(ctx, rows)
}

// Query runs a parameterized statement. A positive MaxBytesBilled makes
// BigQuery fail the job instead of scanning past the cap.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	if c == nil || c.bq == nil {
		return nil, errClientNotInitialized
	}
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("sql query is required")
	}
	q := c.bq.Query(sql)
	q.Parameters = params
	q.MaxBytesBilled = c.maxBytesBilled
	return q.Read(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
