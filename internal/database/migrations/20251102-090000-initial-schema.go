package migrations

func init() {
	Register(Migration{
		Timestamp:   "20251102-090000",
		Description: "initial schema: places, jobs, reviews, menu items, review summaries",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS places (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				url TEXT NOT NULL,
				category TEXT,
				address TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				place_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				status TEXT NOT NULL,
				progress_current INTEGER NOT NULL DEFAULT 0,
				progress_total INTEGER NOT NULL DEFAULT 0,
				event_name TEXT,
				metadata_json TEXT,
				result_json TEXT,
				error_message TEXT,
				started_at TEXT,
				completed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_place_kind ON jobs(place_id, kind)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,

			`CREATE TABLE IF NOT EXISTS reviews (
				id TEXT PRIMARY KEY,
				place_id TEXT NOT NULL,
				fingerprint TEXT NOT NULL UNIQUE,
				author TEXT,
				body TEXT,
				tags_json TEXT,
				visit_date TEXT,
				visit_ordinal TEXT,
				verified INTEGER NOT NULL DEFAULT 0,
				attachment_urls_json TEXT,
				attachments_json TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_place ON reviews(place_id)`,

			`CREATE TABLE IF NOT EXISTS menu_items (
				id TEXT PRIMARY KEY,
				place_id TEXT NOT NULL,
				name TEXT NOT NULL,
				price TEXT,
				description TEXT,
				created_at TEXT NOT NULL,
				UNIQUE(place_id, name)
			)`,

			`CREATE TABLE IF NOT EXISTS review_summaries (
				id TEXT PRIMARY KEY,
				review_id TEXT NOT NULL UNIQUE,
				place_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				payload_json TEXT,
				error_message TEXT,
				retry_count INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				FOREIGN KEY (review_id) REFERENCES reviews(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_summaries_place_status ON review_summaries(place_id, status)`,
		},
	})
}
