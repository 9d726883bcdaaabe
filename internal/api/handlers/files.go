package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orrn/printfarm/internal/db"
)

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
}

type RegisterFileRequest struct {
	UserID                  int64    `json:"user_id" binding:"required"`
	Name                    string   `json:"name" binding:"required"`
	EstimatedPrintingTimeS  *int64   `json:"estimated_printing_time_s"`
	EstimatedNeededMaterial *float64 `json:"estimated_needed_material"`
}

type CreateMaterialRequest struct {
	Type      string  `json:"type" binding:"required"`
	Color     string  `json:"color"`
	Brand     string  `json:"brand"`
	GUID      string  `json:"guid"`
	PrintTemp float64 `json:"print_temp"`
	BedTemp   float64 `json:"bed_temp"`
}

type CreateExtruderTypeRequest struct {
	Brand          string  `json:"brand"`
	NozzleDiameter float64 `json:"nozzle_diameter" binding:"required"`
}

type CreatePrinterModelRequest struct {
	Name   string  `json:"name" binding:"required"`
	Width  float64 `json:"width" binding:"required"`
	Depth  float64 `json:"depth" binding:"required"`
	Height float64 `json:"height" binding:"required"`
}

// FileHandler covers the file metadata registry plus users and the
// material/extruder-type/model catalog. Files are metadata rows only;
// content storage lives outside this service.
type FileHandler struct {
	store *db.Store
}

func NewFileHandler(store *db.Store) *FileHandler {
	return &FileHandler{store: store}
}

func (h *FileHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.store.Users.Create(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *FileHandler) RegisterFile(c *gin.Context) {
	var req RegisterFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.Users.GetByID(c.Request.Context(), req.UserID); err != nil {
		respondError(c, err)
		return
	}

	file := &db.File{
		UserID:                  req.UserID,
		Name:                    req.Name,
		StoredName:              uuid.NewString() + filepath.Ext(req.Name),
		EstimatedPrintingTimeS:  req.EstimatedPrintingTimeS,
		EstimatedNeededMaterial: req.EstimatedNeededMaterial,
	}
	if err := h.store.Files.Create(c.Request.Context(), file); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

func (h *FileHandler) GetFile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	file, err := h.store.Files.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *FileHandler) ListUserFiles(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	files, err := h.store.Files.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files, "count": len(files)})
}

func (h *FileHandler) CreateMaterial(c *gin.Context) {
	var req CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material := &db.Material{
		Type:      req.Type,
		Color:     req.Color,
		Brand:     req.Brand,
		GUID:      req.GUID,
		PrintTemp: req.PrintTemp,
		BedTemp:   req.BedTemp,
	}
	if err := h.store.Catalog.CreateMaterial(c.Request.Context(), material); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, material)
}

func (h *FileHandler) ListMaterials(c *gin.Context) {
	materials, err := h.store.Catalog.ListMaterials(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"materials": materials, "count": len(materials)})
}

func (h *FileHandler) CreateExtruderType(c *gin.Context) {
	var req CreateExtruderTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	extruderType := &db.ExtruderType{
		Brand:          req.Brand,
		NozzleDiameter: req.NozzleDiameter,
	}
	if err := h.store.Catalog.CreateExtruderType(c.Request.Context(), extruderType); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, extruderType)
}

func (h *FileHandler) ListExtruderTypes(c *gin.Context) {
	types, err := h.store.Catalog.ListExtruderTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"extruder_types": types, "count": len(types)})
}

func (h *FileHandler) CreatePrinterModel(c *gin.Context) {
	var req CreatePrinterModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model := &db.PrinterModel{
		Name:   req.Name,
		Width:  req.Width,
		Depth:  req.Depth,
		Height: req.Height,
	}
	if err := h.store.Catalog.CreatePrinterModel(c.Request.Context(), model); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model)
}

func (h *FileHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id/files", h.ListUserFiles)
	r.POST("/files", h.RegisterFile)
	r.GET("/files/:id", h.GetFile)
	r.POST("/materials", h.CreateMaterial)
	r.GET("/materials", h.ListMaterials)
	r.POST("/extruder-types", h.CreateExtruderType)
	r.GET("/extruder-types", h.ListExtruderTypes)
	r.POST("/printer-models", h.CreatePrinterModel)
}
