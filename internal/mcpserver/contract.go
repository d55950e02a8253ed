package mcpserver

// MemoryGuidelines tells LLM clients how to record memories so they read
// well next to the ones people submit through the map.
const MemoryGuidelines = `# Home History Memory Guidelines

A memory is one person's recollection of a home. It is stored verbatim and
shown on the property page under the submitter's name.

## Before adding

1. Resolve the address with ` + "`enrich_address`" + ` and use the matched
   coordinates when the caller did not give any.
2. Check ` + "`find_nearby_properties`" + ` with a small radius (0.1 miles) to see
   what is already recorded. ` + "`add_memory`" + ` attaches to any property within
   about 100 meters, so a new property is only created when nothing is that close.

## Writing the memory

- Keep the submitter's words. Fix obvious typos, never embellish.
- One memory per recollection; do not merge several people's stories.
- Write in the first person when the submitter lived there.
- Leave out phone numbers, emails and the names of private third parties.
- Years matter: pass ` + "`year_moved_in`" + ` and ` + "`year_moved_out`" + ` when known. A move-out
  year earlier than the move-in year is rejected.

## Example

` + "```" + `
address:        412 Chestnut Ave, Springfield, IL
lat, lng:       39.7990, -89.6440
submitter_name: Dolores R.
year_moved_in:  1958
year_moved_out: 1974
memory:         My father built the back porch the summer I turned nine. We
                shelled peas out there every July.
` + "```" + `
`
