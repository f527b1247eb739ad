package search

// EventsMapping is the index definition for events: a folding snowball analyzer on free text
// and a completion sub-field on title for suggestions.
const EventsMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "event_analyzer": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding", "snowball"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id": {"type": "long"},
      "title": {
        "type": "text",
        "analyzer": "event_analyzer",
        "fields": {
          "keyword": {"type": "keyword"},
          "suggest": {"type": "completion", "analyzer": "simple"}
        }
      },
      "description": {"type": "text", "analyzer": "event_analyzer"},
      "location": {
        "type": "text",
        "fields": {"keyword": {"type": "keyword"}}
      },
      "category": {"type": "keyword"},
      "date": {"type": "date"},
      "seats": {"type": "integer"},
      "created_at": {"type": "date"}
    }
  }
}`
