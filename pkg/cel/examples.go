package cel

// ConditionExamples lists guard expressions accepted on rules.
var ConditionExamples = map[string]string{
	"head_equals":       `compliance_head == "GST"`,
	"head_in_list":      `compliance_head in ["GST", "TDS"]`,
	"attribute_present": `has(target.entity_type) && target.entity_type == "llp"`,
	"attribute_default": `"state" in target ? target.state == "KA" : false`,
	"prefix":            `sub_head.startsWith("GSTR")`,
	"combined":          `compliance_head == "GST" && entity != ""`,
	"numeric_attribute": `"turnover_cr" in target && double(target.turnover_cr) > 5.0`,
}
