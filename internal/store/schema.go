package store

const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	display_name TEXT NOT NULL,
	spotify_user_id TEXT NOT NULL DEFAULT '',
	access_token TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type TEXT NOT NULL DEFAULT '',
	token_expiry DATETIME NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS albums (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	artists TEXT NOT NULL DEFAULT '[]',  -- JSON array
	track_count INTEGER NOT NULL DEFAULT 0,
	genres TEXT NOT NULL DEFAULT '[]',   -- JSON array
	image_url TEXT NOT NULL DEFAULT '',
	release_precision TEXT NOT NULL DEFAULT '',
	upc TEXT NOT NULL DEFAULT '',
	ean TEXT NOT NULL DEFAULT '',

	-- Identity key, normalized. Unknown parts are '' or 0, never NULL.
	norm_title TEXT NOT NULL,
	norm_artists TEXT NOT NULL,          -- JSON array, order preserved
	release_year INTEGER NOT NULL DEFAULT 0,
	release_month INTEGER NOT NULL DEFAULT 0,
	release_day INTEGER NOT NULL DEFAULT 0,
	spotify_id TEXT NOT NULL DEFAULT '',

	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_albums_identity ON albums(
	norm_title, norm_artists, release_year, release_month, release_day, spotify_id
);

CREATE TABLE IF NOT EXISTS tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	album_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	artists TEXT NOT NULL DEFAULT '[]',
	disc_number INTEGER NOT NULL DEFAULT 0,
	track_number INTEGER NOT NULL DEFAULT 0,
	spotify_id TEXT NOT NULL DEFAULT '',
	recording_mbid TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',

	norm_title TEXT NOT NULL,
	norm_artists TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	isrc TEXT NOT NULL DEFAULT '',

	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,

	FOREIGN KEY (album_id) REFERENCES albums(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tracks_identity ON tracks(
	album_id, norm_title, norm_artists, duration_ms, isrc
);

CREATE TABLE IF NOT EXISTS plays (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	track_id INTEGER NOT NULL,
	listened_at INTEGER NOT NULL,        -- unix milliseconds
	popularity INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,

	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (track_id) REFERENCES tracks(id),
	UNIQUE (user_id, track_id, listened_at)
);

CREATE INDEX IF NOT EXISTS idx_plays_user_listened ON plays(user_id, listened_at);

CREATE TABLE IF NOT EXISTS album_metadata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	album_id INTEGER NOT NULL,
	source TEXT NOT NULL,
	external_id TEXT,
	matched BOOLEAN NOT NULL DEFAULT 0,
	candidate_track_count INTEGER NOT NULL DEFAULT 0,
	checked_at INTEGER NOT NULL,         -- unix milliseconds

	FOREIGN KEY (album_id) REFERENCES albums(id),
	UNIQUE (album_id, source)
);

CREATE INDEX IF NOT EXISTS idx_album_metadata_checked ON album_metadata(source, checked_at);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	source_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	error TEXT
);

-- Prevent duplicate active jobs for same source
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active_source ON jobs(source_id, type)
WHERE status IN ('queued', 'running');

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
