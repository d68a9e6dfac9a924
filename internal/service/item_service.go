package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
	"github.com/prperemyshlev/app-scaffold/internal/repository"
	"github.com/prperemyshlev/app-scaffold/internal/utils"
)

const (
	itemNameMaxLength = 255
	maxItemPrice      = 99999999.99

	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// itemService implements ItemService interface
type itemService struct {
	items repository.ItemRepository
}

// NewItemService creates a new item service
func NewItemService(items repository.ItemRepository) ItemService {
	return &itemService{items: items}
}

func (s *itemService) Create(ctx context.Context, ownerID string, req *dto.ItemRequest) (*domain.Item, error) {
	item := &domain.Item{UserID: ownerID}
	if err := applyItemRequest(item, req); err != nil {
		return nil, err
	}

	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	return item, nil
}

func (s *itemService) Get(ctx context.Context, ownerID, id string) (*domain.Item, error) {
	item, err := s.items.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, itemError(err, "get")
	}
	return item, nil
}

// List returns one page of the owner's items with pagination metadata
func (s *itemService) List(ctx context.Context, ownerID string, page, perPage int) (*dto.ItemListResponse, error) {
	v := validation{}
	if page < 1 {
		v.add("page", "must be at least 1")
	}
	if perPage < 1 || perPage > MaxPerPage {
		v.add("per_page", "must be between 1 and 100")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	items, total, err := s.items.ListByUser(ctx, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	return &dto.ItemListResponse{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		HasNext: page*perPage < total,
		HasPrev: page > 1,
	}, nil
}

// Update replaces name, description and price of an owned item
func (s *itemService) Update(ctx context.Context, ownerID, id string, req *dto.ItemRequest) (*domain.Item, error) {
	item, err := s.items.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, itemError(err, "get")
	}

	if err := applyItemRequest(item, req); err != nil {
		return nil, err
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, itemError(err, "update")
	}

	return item, nil
}

func (s *itemService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.items.Delete(ctx, ownerID, id); err != nil {
		return itemError(err, "delete")
	}
	return nil
}

func applyItemRequest(item *domain.Item, req *dto.ItemRequest) error {
	v := validation{}

	name := utils.SanitizeText(req.Name)
	switch {
	case name == "":
		v.add("name", "must not be empty")
	case utf8.RuneCountInString(name) > itemNameMaxLength:
		v.add("name", "must be at most 255 characters long")
	}

	var description *string
	if req.Description != nil {
		if cleaned := utils.SanitizeText(*req.Description); cleaned != "" {
			description = &cleaned
		}
	}

	var price *float64
	if req.Price != nil {
		p := *req.Price
		switch {
		case math.IsNaN(p) || math.IsInf(p, 0):
			v.add("price", "must be a number")
		case p < 0:
			v.add("price", "must not be negative")
		case p > maxItemPrice:
			v.add("price", "must be at most 99999999.99")
		default:
			rounded := math.Round(p*100) / 100
			price = &rounded
		}
	}

	if err := v.err(); err != nil {
		return err
	}

	item.Name = name
	item.Description = description
	item.Price = price
	return nil
}

// itemError hides whether a foreign item exists
func itemError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("item: %w", ErrNotFound)
	}
	return fmt.Errorf("failed to %s item: %w", op, err)
}
