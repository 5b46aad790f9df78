package repositories

// rowScanner abstracts pgx.Row / pgx.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}
