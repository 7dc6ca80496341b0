package history

const schema = `
CREATE TABLE IF NOT EXISTS uploads (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    project TEXT NOT NULL,
    report_file TEXT NOT NULL,
    status TEXT NOT NULL,
    message TEXT,
    suite_id INTEGER DEFAULT 0,
    run_id INTEGER DEFAULT 0,
    result_count INTEGER DEFAULT 0,
    started_at TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_uploads_project ON uploads(project);
CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status);
`
