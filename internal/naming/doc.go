// Package naming provides the name policy: title extraction, date prefixes,
// type tags, file name sanitizing, and the collision-free placement rule
// shared by the archiver, the duplicate engine and direct renames.
//
//   - ExtractTitle(stem) strips dates, counters and numeric affixes.
//   - Renamer.NewName(record) assembles date_tag_title or reports no change.
//   - UniquePath(dir, stem, suffix, checker) appends (1), (2), ... until free.
package naming
