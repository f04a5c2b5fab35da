package warehouse

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"

	"github.com/sparkify/dwhctl/internal/config"
)

// Settings are the values the statement templates are rendered from.
// They are passed in explicitly; nothing here reads configuration files.
type Settings struct {
	Region      string
	RoleARN     string
	LogData     string
	LogJSONPath string
	SongData    string
}

// SettingsFromConfig picks the template values out of a loaded config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Region:      cfg.Cluster.Region,
		RoleARN:     cfg.CopyRoleARN(),
		LogData:     cfg.S3.LogData,
		LogJSONPath: cfg.S3.LogJSONPath,
		SongData:    cfg.S3.SongData,
	}
}

func (s Settings) missing() []string {
	var keys []string
	for _, f := range []struct {
		key, val string
	}{
		{"cluster.region", s.Region},
		{"iam_role.arn", s.RoleARN},
		{"s3.log_data", s.LogData},
		{"s3.log_jsonpath", s.LogJSONPath},
		{"s3.song_data", s.SongData},
	} {
		if strings.TrimSpace(f.val) == "" {
			keys = append(keys, f.key)
		}
	}
	return keys
}

// Statement is one SQL statement of the pipeline. Table names the table it
// acts on; Name is a label used for analysis queries.
type Statement struct {
	Name  string
	Table string
	SQL   string
}

// Queries holds the rendered statement lists in execution order.
type Queries struct {
	Drop    []Statement
	Create  []Statement
	Copy    []Statement
	Insert  []Statement
	Analyze []Statement

	settings Settings
}

type statementTemplate struct {
	name  string
	table string
	text  string
}

var dropTemplates = []statementTemplate{
	{table: "staging_events", text: `DROP TABLE IF EXISTS staging_events;`},
	{table: "staging_songs", text: `DROP TABLE IF EXISTS staging_songs;`},
	{table: "songplays", text: `DROP TABLE IF EXISTS songplays;`},
	{table: "songs", text: `DROP TABLE IF EXISTS songs;`},
	{table: "artists", text: `DROP TABLE IF EXISTS artists;`},
	{table: "users", text: `DROP TABLE IF EXISTS users;`},
	{table: "time", text: `DROP TABLE IF EXISTS time;`},
}

// songplays references users, songs and artists, so it is created last.
var createTemplates = []statementTemplate{
	{table: "staging_events", text: `
CREATE TABLE IF NOT EXISTS staging_events (
    artist TEXT,
    auth TEXT,
    first_name TEXT,
    gender TEXT,
    item_in_session INT,
    last_name TEXT,
    length FLOAT,
    level TEXT,
    location TEXT,
    method TEXT,
    page TEXT,
    registration FLOAT,
    session_id INT,
    song TEXT,
    status INT,
    ts VARCHAR,
    user_agent TEXT,
    user_id INT
);`},
	{table: "staging_songs", text: `
CREATE TABLE IF NOT EXISTS staging_songs (
    artist_id TEXT,
    artist_latitude FLOAT,
    artist_location TEXT,
    artist_longitude FLOAT,
    artist_name TEXT,
    duration FLOAT,
    num_songs INT,
    song_id TEXT,
    title TEXT,
    year INT
);`},
	{table: "users", text: `
CREATE TABLE IF NOT EXISTS users (
    user_id INT NOT NULL PRIMARY KEY,
    first_name TEXT,
    last_name TEXT,
    gender TEXT,
    level TEXT
);`},
	{table: "artists", text: `
CREATE TABLE IF NOT EXISTS artists (
    artist_id TEXT NOT NULL PRIMARY KEY,
    name TEXT,
    location TEXT,
    latitude FLOAT,
    longitude FLOAT
);`},
	{table: "songs", text: `
CREATE TABLE IF NOT EXISTS songs (
    song_id TEXT NOT NULL PRIMARY KEY,
    title TEXT,
    artist_id TEXT NOT NULL DISTKEY REFERENCES artists(artist_id),
    year INT,
    duration FLOAT
);`},
	{table: "time", text: `
CREATE TABLE IF NOT EXISTS time (
    start_time TIMESTAMP NOT NULL SORTKEY DISTKEY PRIMARY KEY,
    hour INT,
    day INT,
    week INT,
    month INT,
    year INT,
    weekday INT
);`},
	{table: "songplays", text: `
CREATE TABLE IF NOT EXISTS songplays (
    songplay_id INT IDENTITY(0,1) PRIMARY KEY,
    start_time TIMESTAMP SORTKEY DISTKEY NOT NULL,
    user_id INT NOT NULL REFERENCES users(user_id),
    level TEXT,
    song_id TEXT NOT NULL REFERENCES songs(song_id),
    artist_id TEXT NOT NULL REFERENCES artists(artist_id),
    session_id INT NOT NULL,
    location TEXT,
    user_agent TEXT
);`},
}

var copyTemplates = []statementTemplate{
	{table: "staging_events", text: `
copy staging_events from {{ .LogData | s3path }}
    iam_role {{ .RoleARN | literal }}
    json {{ .LogJSONPath | s3path }} compupdate off region {{ .Region | literal }};`},
	{table: "staging_songs", text: `
copy staging_songs from {{ .SongData | s3path }}
    iam_role {{ .RoleARN | literal }}
    TRUNCATECOLUMNS json 'auto' compupdate off region {{ .Region | literal }};`},
}

const epochToTimestamp = `timestamp 'epoch' + cast(ts AS bigint)/1000 * interval '1 second'`

// Dimensions first, the fact table last.
var insertTemplates = []statementTemplate{
	{table: "users", text: `
INSERT INTO users (user_id, first_name, last_name, gender, level)
SELECT DISTINCT(user_id) as user_id, first_name, last_name, gender, level
FROM staging_events
WHERE page = 'NextSong';`},
	{table: "artists", text: `
INSERT INTO artists (artist_id, name, location, latitude, longitude)
SELECT DISTINCT(artist_id) as artist_id, artist_name, artist_location, artist_latitude, artist_longitude
FROM staging_songs;`},
	{table: "songs", text: `
INSERT INTO songs (song_id, title, artist_id, year, duration)
SELECT DISTINCT(song_id) as song_id, title, artist_id, year, duration
FROM staging_songs;`},
	{table: "time", text: `
INSERT INTO time (start_time, hour, day, week, month, year, weekday)
SELECT DISTINCT {{ epoch }} as start_time,
EXTRACT(hour from start_time) as hour,
EXTRACT(day from start_time) as day,
EXTRACT(week from start_time) as week,
EXTRACT(month from start_time) as month,
EXTRACT(year from start_time) as year,
EXTRACT(dayofweek from start_time) as weekday
FROM staging_events;`},
	{table: "songplays", text: `
INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
SELECT DISTINCT {{ epoch }} as start_time,
se.user_id as user_id,
se.level as level,
ss.song_id as song_id,
ss.artist_id as artist_id,
se.session_id as session_id,
se.location as location,
se.user_agent as user_agent
FROM staging_events se
JOIN staging_songs ss ON (se.artist = ss.artist_name AND se.song = ss.title)
WHERE se.page = 'NextSong';`},
}

var analyzeTemplates = []statementTemplate{
	{name: "songs_2000_2005", table: "songs", text: `
SELECT s.title, a.name, a.location FROM songs s
JOIN artists a ON a.artist_id = s.artist_id
WHERE year BETWEEN 2000 AND 2005 LIMIT 10;`},
	{name: "artists_count", table: "artists", text: `SELECT COUNT(*) FROM artists;`},
	{name: "songs_count", table: "songs", text: `SELECT COUNT(*) FROM songs;`},
	{name: "users_count", table: "users", text: `SELECT COUNT(*) FROM users;`},
	{name: "time_count", table: "time", text: `SELECT COUNT(*) FROM time;`},
	{name: "songplays_count", table: "songplays", text: `SELECT COUNT(*) FROM songplays;`},
	{name: "windows_users", table: "songplays", text: `
SELECT COUNT(*) as windows_users
FROM songplays
WHERE songplays.user_agent LIKE '%Windows%';`},
	{name: "mac_users", table: "songplays", text: `
SELECT COUNT(*) as mac_users
FROM songplays
WHERE songplays.user_agent LIKE '%Mac OS%';`},
}

// NewQueries renders every statement list from settings. Copy statements
// are rendered even when settings are incomplete; Runner.Load refuses to run
// them in that case.
func NewQueries(s Settings) (*Queries, error) {
	q := &Queries{settings: s}
	for _, l := range []struct {
		name string
		in   []statementTemplate
		out  *[]Statement
	}{
		{"drop", dropTemplates, &q.Drop},
		{"create", createTemplates, &q.Create},
		{"copy", copyTemplates, &q.Copy},
		{"insert", insertTemplates, &q.Insert},
		{"analyze", analyzeTemplates, &q.Analyze},
	} {
		stmts, err := renderAll(l.name, l.in, s)
		if err != nil {
			return nil, err
		}
		*l.out = stmts
	}
	return q, nil
}

func renderAll(list string, templates []statementTemplate, s Settings) ([]Statement, error) {
	stmts := make([]Statement, 0, len(templates))
	for _, t := range templates {
		sql, err := renderStatement(t.text, s)
		if err != nil {
			return nil, fmt.Errorf("rendering %s statement for %s: %w", list, t.table, err)
		}
		name := t.name
		if name == "" {
			name = list + "_" + t.table
		}
		stmts = append(stmts, Statement{Name: name, Table: t.table, SQL: sql})
	}
	return stmts, nil
}

func newStatementTemplate(text string) (*template.Template, error) {
	funcs := template.FuncMap{
		"s3path":  s3Path,
		"literal": literal,
		"epoch":   func() string { return epochToTimestamp },
	}
	return template.New("statement").Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Funcs(funcs).Parse(text)
}

func renderStatement(text string, s Settings) (string, error) {
	tmpl, err := newStatementTemplate(text)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// s3Path quotes an S3 location or JSONPaths value for COPY. Values may be
// written in the config with or without surrounding single quotes.
func s3Path(v string) string {
	return literal(strings.Trim(strings.TrimSpace(v), "'"))
}

// literal renders v as a single-quoted SQL string literal.
func literal(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
