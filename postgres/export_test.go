package postgres

// Test-only access to unexported helpers.

func optionsOf(opts ...Option) *options {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return o
}

var (
	ExportValidate = func(opts ...Option) error {
		return optionsOf(opts...).validate()
	}

	ExportConnectionString = func(opts ...Option) string {
		return optionsOf(opts...).connectionString()
	}

	ExportCreateStatements = func(opts ...Option) []string {
		return optionsOf(opts...).createStatements()
	}

	ExportVerifySchema = func(opts ...Option) func(map[string]*dbRow) error {
		return optionsOf(opts...).verifySchema
	}
)

// DBRow is the column description compared by the schema check.
type DBRow = dbRow

// Pool is the connection pool interface used by Client.
type Pool = pool

// SetPool replaces the client's connection pool.
func (c *Client) SetPool(p Pool) {
	c.conn = p
}
