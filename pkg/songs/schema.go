package songs

// DocumentSchema is the JSON Schema for the top level of songs.yaml. Entries
// are checked one by one afterwards so a bad entry drops only itself.
const DocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["songs"],
  "properties": {
    "songs": {
      "type": ["array", "null"],
      "items": {}
    }
  }
}`
