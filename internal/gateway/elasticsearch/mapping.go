package elasticsearch

// DefaultIndexPrefix is the default prefix for collection indices, giving
// index names like "storefront_products".
const DefaultIndexPrefix = "storefront"

// buildIndexMapping returns the JSON mapping for the products index. Facetable
// fields are keywords so terms aggregations work without fielddata; text
// fields get an autocomplete sub-field for suggestion queries.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":                { "type": "keyword" },
      "name":              { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "description":       { "type": "text" },
      "short_description": { "type": "text" },
      "sku":               { "type": "keyword" },
      "price":             { "type": "double" },
      "regular_price":     { "type": "double" },
      "sale_price":        { "type": "double" },
      "on_sale":           { "type": "boolean" },
      "stock_status":      { "type": "keyword" },
      "rating":            { "type": "double" },
      "categories":        { "type": "keyword" },
      "tags":              { "type": "keyword" },
      "attributes":        { "type": "keyword" },
      "permalink":         { "type": "keyword", "index": false },
      "image_url":         { "type": "keyword", "index": false },
      "created_at":        { "type": "date", "format": "epoch_second" }
    }
  }
}`
}
