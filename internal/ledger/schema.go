package ledger

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		invoice_number TEXT NOT NULL UNIQUE,
		order_id TEXT,
		date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		logo_img TEXT,
		sign_img TEXT,
		currency TEXT NOT NULL DEFAULT '',
		discount_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		tax_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		shipping DOUBLE PRECISION NOT NULL DEFAULT 0,
		payed DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sender_info (
		id BIGSERIAL PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		tax_id TEXT,
		email TEXT,
		phone TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS recipient_info (
		id BIGSERIAL PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		email TEXT,
		phone TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id BIGSERIAL PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items (invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_recipient_info_invoice ON recipient_info (invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_currency ON invoices (currency)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_number TEXT NOT NULL UNIQUE,
		order_id TEXT,
		date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		logo_img TEXT,
		sign_img TEXT,
		currency TEXT NOT NULL DEFAULT '',
		discount_amount REAL NOT NULL DEFAULT 0,
		tax_percentage REAL NOT NULL DEFAULT 0,
		shipping REAL NOT NULL DEFAULT 0,
		payed REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sender_info (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		tax_id TEXT,
		email TEXT,
		phone TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS recipient_info (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		email TEXT,
		phone TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items (invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_recipient_info_invoice ON recipient_info (invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_currency ON invoices (currency)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}
