package mcpserver

// PartitionFormatContract describes the on-disk partition files and the
// rules a client must follow when creating or changing notes.
const PartitionFormatContract = `# Jotter Partition Format

Notes live in plain-text files, one file per calendar day, named
` + "`" + `<title>_<YYYY-MM-DD>.<ext>` + "`" + ` (for example ` + "`" + `journal_2024-01-05.tsv` + "`" + `).
A note belongs to the file of its timestamp's local date.

## Record

Each line is one note with three fields separated by a TAB:

` + "```" + `text
2024-01-05T09:30:00.000000<TAB>buy milk<TAB>home errand
` + "```" + `

1. **Timestamp**: local time, ` + "`" + `YYYY-MM-DDTHH:MM:SS.ffffff` + "`" + ` (microseconds, no zone).
   Timestamps are unique across the notebook; creating a second note at the
   same instant fails.
2. **Text**: free text. It MUST NOT contain a TAB or a newline.
3. **Tags**: zero or more tags separated by single spaces. A tag MUST NOT
   contain a space or a TAB. Duplicate tags are dropped.

## Rules

- Use the tools, never edit partition files by hand while the server runs.
- Setting a note's text to an empty or blank string deletes the note.
- Changes are held in memory until ` + "`" + `save_notebook` + "`" + ` runs; only the files of
  changed days are rewritten.
- Only today's file is loaded at startup. Call ` + "`" + `load_all_notes` + "`" + ` before
  querying older days.
- Dates in tool arguments use ` + "`" + `YYYY-MM-DD` + "`" + `; timestamps use RFC 3339
  (` + "`" + `2024-01-05T09:30:00Z` + "`" + `). Omit the timestamp to use the current time.
`
