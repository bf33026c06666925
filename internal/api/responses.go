package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-mockenv/internal/models"
)

// ListResponses returns the responses of a route, default first
func (h *Handler) ListResponses(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if _, err := h.store.GetRoute(id); err != nil {
		storeError(c, err, "Route not found")
		return
	}

	responses, err := h.store.GetResponsesByRoute(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, responses)
}

// CreateResponse creates a response for a route
func (h *Handler) CreateResponse(c *gin.Context) {
	routeID, ok := paramID(c)
	if !ok {
		return
	}

	var input models.ResponseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := &models.Response{
		RouteID:    routeID,
		Name:       input.Name,
		StatusCode: input.StatusCode,
		Headers:    input.Headers,
		Body:       input.Body,
		DelayMs:    input.DelayMs,
		IsDefault:  input.IsDefault,
		Priority:   input.Priority,
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	if msg := validateResponse(resp); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.store.CreateResponse(resp); err != nil {
		storeError(c, err, "Route not found")
		return
	}
	if err := h.clearOtherDefaults(resp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetResponse returns a response with its rules
func (h *Handler) GetResponse(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	resp, err := h.store.GetResponse(id)
	if err != nil {
		storeError(c, err, "Response not found")
		return
	}

	rules, err := h.store.GetRulesByResponse(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response": resp,
		"rules":    rules,
	})
}

// UpdateResponse updates a response
func (h *Handler) UpdateResponse(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	resp, err := h.store.GetResponse(id)
	if err != nil {
		storeError(c, err, "Response not found")
		return
	}

	var update models.ResponseUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if update.Name != nil {
		resp.Name = *update.Name
	}
	if update.StatusCode != nil {
		resp.StatusCode = *update.StatusCode
	}
	if update.Headers != nil {
		resp.Headers = *update.Headers
	}
	if update.Body != nil {
		resp.Body = *update.Body
	}
	if update.DelayMs != nil {
		resp.DelayMs = *update.DelayMs
	}
	if update.IsDefault != nil {
		resp.IsDefault = *update.IsDefault
	}
	if update.Priority != nil {
		resp.Priority = *update.Priority
	}
	if msg := validateResponse(resp); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.store.UpdateResponse(resp); err != nil {
		storeError(c, err, "Response not found")
		return
	}
	if err := h.clearOtherDefaults(resp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteResponse deletes a response with its rules
func (h *Handler) DeleteResponse(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteResponse(id); err != nil {
		storeError(c, err, "Response not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Response deleted"})
}

// clearOtherDefaults keeps at most one default response per route
func (h *Handler) clearOtherDefaults(resp *models.Response) error {
	if !resp.IsDefault {
		return nil
	}

	siblings, err := h.store.GetResponsesByRoute(resp.RouteID)
	if err != nil {
		return err
	}
	for _, other := range siblings {
		if other.ID == resp.ID || !other.IsDefault {
			continue
		}
		other.IsDefault = false
		if err := h.store.UpdateResponse(other); err != nil {
			return err
		}
	}
	return nil
}

func validateResponse(resp *models.Response) string {
	if strings.TrimSpace(resp.Name) == "" {
		return "Name is required"
	}
	if resp.StatusCode < 100 || resp.StatusCode > 599 {
		return "Status code must be between 100 and 599"
	}
	if resp.DelayMs < 0 {
		return "Delay must not be negative"
	}
	if strings.TrimSpace(resp.Headers) != "" {
		var headers map[string]any
		if err := json.Unmarshal([]byte(resp.Headers), &headers); err != nil {
			return "Headers must be a JSON object"
		}
	}
	return ""
}

// ListRules returns the rules of a response
func (h *Handler) ListRules(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if _, err := h.store.GetResponse(id); err != nil {
		storeError(c, err, "Response not found")
		return
	}

	rules, err := h.store.GetRulesByResponse(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rules)
}

// CreateRule creates a rule for a response
func (h *Handler) CreateRule(c *gin.Context) {
	responseID, ok := paramID(c)
	if !ok {
		return
	}

	var input models.RuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r := &models.Rule{
		ResponseID: responseID,
		Name:       input.Name,
		RuleType:   strings.ToLower(strings.TrimSpace(input.RuleType)),
		FieldName:  input.FieldName,
		Operator:   strings.ToLower(strings.TrimSpace(input.Operator)),
		Value:      input.Value,
		Priority:   input.Priority,
	}
	if msg := validateRule(r); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.store.CreateRule(r); err != nil {
		storeError(c, err, "Response not found")
		return
	}

	c.JSON(http.StatusCreated, r)
}

// GetRule returns a single rule
func (h *Handler) GetRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	r, err := h.store.GetRule(id)
	if err != nil {
		storeError(c, err, "Rule not found")
		return
	}

	c.JSON(http.StatusOK, r)
}

// UpdateRule updates a rule
func (h *Handler) UpdateRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	r, err := h.store.GetRule(id)
	if err != nil {
		storeError(c, err, "Rule not found")
		return
	}

	var update models.RuleUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if update.Name != nil {
		r.Name = *update.Name
	}
	if update.RuleType != nil {
		r.RuleType = strings.ToLower(strings.TrimSpace(*update.RuleType))
	}
	if update.FieldName != nil {
		r.FieldName = *update.FieldName
	}
	if update.Operator != nil {
		r.Operator = strings.ToLower(strings.TrimSpace(*update.Operator))
	}
	if update.Value != nil {
		r.Value = *update.Value
	}
	if update.Priority != nil {
		r.Priority = *update.Priority
	}
	if msg := validateRule(r); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.store.UpdateRule(r); err != nil {
		storeError(c, err, "Rule not found")
		return
	}

	c.JSON(http.StatusOK, r)
}

// DeleteRule deletes a rule
func (h *Handler) DeleteRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteRule(id); err != nil {
		storeError(c, err, "Rule not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted"})
}

// validateRule rejects unknown rule types and operators
func validateRule(r *models.Rule) string {
	if !slices.Contains(models.ValidRuleTypes(), r.RuleType) {
		return "Invalid rule type: " + r.RuleType
	}
	if !slices.Contains(models.ValidOperators(), r.Operator) {
		return "Invalid operator: " + r.Operator
	}
	if r.RuleType != models.RuleTypeCustom && strings.TrimSpace(r.FieldName) == "" {
		return "Field name is required"
	}
	return ""
}
